package util

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// CreateAsyncErrorChannel produces a channel for errors from async partition
// work. The channel is buffered to the worker count so workers never block on
// the result collector.
func CreateAsyncErrorChannel(workers int) chan error {
	return make(chan error, workers)
}

// WaitAndFetchErrors waits for a group of async partition workers and
// aggregates every error they produced, rather than the first one - a flush
// failure on one partition should not mask failures on others
func WaitAndFetchErrors(wg *sync.WaitGroup, errors chan error) error {
	go func() {
		defer close(errors)
		wg.Wait()
	}()
	var multierr *multierror.Error
	for err := range errors {
		if err != nil {
			multierr = multierror.Append(multierr, err)
		}
	}
	return multierr.ErrorOrNil()
}
