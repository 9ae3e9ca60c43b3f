package reduce

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
)

// wordCount is the item type used throughout these tests
type wordCount struct {
	word  string
	count uint64
}

func wordKey(item interface{}) (interface{}, error) {
	return []byte(item.(*wordCount).word), nil
}

func countValue(item interface{}) (interface{}, error) {
	return item.(*wordCount).count, nil
}

func sumCounts(left interface{}, right interface{}) (interface{}, error) {
	return left.(uint64) + right.(uint64), nil
}

// mapEmitter collects emitted pairs keyed by word
type mapEmitter struct {
	sync.Mutex
	pairs map[string]uint64
}

func newMapEmitter() *mapEmitter {
	return &mapEmitter{pairs: make(map[string]uint64)}
}

func (e *mapEmitter) Emit(key interface{}, value interface{}) error {
	e.Lock()
	defer e.Unlock()
	e.pairs[string(key.([]byte))] += value.(uint64)
	return nil
}

// routingSink records which destination partition each pair was routed to
type routingSink struct {
	sync.Mutex
	routes map[string]int
	pairs  map[string]uint64
}

func newRoutingSink() *routingSink {
	return &routingSink{routes: make(map[string]int), pairs: make(map[string]uint64)}
}

func (s *routingSink) EmitTo(partition int, key interface{}, value interface{}) error {
	s.Lock()
	defer s.Unlock()
	word := string(key.([]byte))
	if prev, seen := s.routes[word]; seen && prev != partition {
		return fmt.Errorf("word %s routed to both partition %d and %d", word, prev, partition)
	}
	s.routes[word] = partition
	s.pairs[word] += value.(uint64)
	return nil
}

func createTestOptions(t *testing.T) *TableOptions {
	return &TableOptions{
		MemoryBudgetBytes: 1 << 20,
		AvgItemBytes:      32,
		KeyHasher:         sieve.NewBytesHasher(0),
		KeyCodec:          sieve.BytesCodec{},
		ValueCodec:        sieve.Uint64Codec{},
		TempDir:           t.TempDir(),
	}
}

func insertWords(t *testing.T, table *Table, words []string, repeats int) map[string]uint64 {
	expected := make(map[string]uint64)
	for r := 0; r < repeats; r++ {
		for i, word := range words {
			require.Nil(t, table.Insert(&wordCount{word: word, count: uint64(i + 1)}))
			expected[word] += uint64(i + 1)
		}
	}
	return expected
}

func TestPostTableAggregates(t *testing.T) {
	emitter := newMapEmitter()
	table, err := CreatePostTable(createTestOptions(t), wordKey, countValue, sumCounts, emitter)
	require.Nil(t, err)
	defer table.Dispose()
	words := []string{"the", "quick", "brown", "fox", "the", "lazy", "dog", "the"}
	expected := insertWords(t, table, words, 100)
	require.Nil(t, table.Flush())
	require.Equal(t, expected, emitter.pairs)
}

func TestPreTableRoutesByDestination(t *testing.T) {
	sink := newRoutingSink()
	table, err := CreatePreTable(createTestOptions(t), 4, wordKey, countValue, sumCounts, sink)
	require.Nil(t, err)
	defer table.Dispose()
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("word-%d", i)
	}
	expected := insertWords(t, table, words, 10)
	require.Nil(t, table.Flush())
	require.Equal(t, expected, sink.pairs)
	// every destination worker received a share of the keys
	destinations := make(map[int]bool)
	for _, p := range sink.routes {
		require.True(t, p >= 0 && p < 4)
		destinations[p] = true
	}
	require.Equal(t, 4, len(destinations))
}

func TestPreTableSpillsUnderPressure(t *testing.T) {
	sink := newRoutingSink()
	opts := createTestOptions(t)
	opts.MemoryBudgetBytes = 2048
	table, err := CreatePreTable(opts, 4, wordKey, countValue, sumCounts, sink)
	require.Nil(t, err)
	defer table.Dispose()
	words := make([]string, 1000)
	for i := range words {
		words[i] = fmt.Sprintf("word-%d", i)
	}
	expected := insertWords(t, table, words, 20)
	require.Nil(t, table.Flush())
	require.Equal(t, expected, sink.pairs)
	require.True(t, table.Stats().SpillCount > 0)
}

func TestPreTableImmediateFlush(t *testing.T) {
	sink := newRoutingSink()
	opts := createTestOptions(t)
	opts.MemoryBudgetBytes = 2048
	opts.ImmediateFlush = true
	table, err := CreatePreTable(opts, 4, wordKey, countValue, sumCounts, sink)
	require.Nil(t, err)
	defer table.Dispose()
	words := make([]string, 1000)
	for i := range words {
		words[i] = fmt.Sprintf("word-%d", i)
	}
	expected := insertWords(t, table, words, 20)
	require.Nil(t, table.Flush())
	// partial aggregates still sum to the same totals, without any disk I/O
	require.Equal(t, expected, sink.pairs)
	require.Equal(t, int64(0), table.Stats().SpilledBytes)
}

func TestPostTableRejectsImmediateFlush(t *testing.T) {
	opts := createTestOptions(t)
	opts.ImmediateFlush = true
	_, err := CreatePostTable(opts, wordKey, countValue, sumCounts, newMapEmitter())
	require.IsType(t, errors.ConfigurationError{}, err)
}

func TestCreateValidatesCallbacks(t *testing.T) {
	opts := createTestOptions(t)
	_, err := CreatePostTable(opts, nil, countValue, sumCounts, newMapEmitter())
	require.IsType(t, errors.ConfigurationError{}, err)
	_, err = CreatePostTable(opts, wordKey, nil, sumCounts, newMapEmitter())
	require.IsType(t, errors.ConfigurationError{}, err)
	_, err = CreatePostTable(opts, wordKey, countValue, nil, newMapEmitter())
	require.IsType(t, errors.ConfigurationError{}, err)
	_, err = CreatePostTable(opts, wordKey, countValue, sumCounts, nil)
	require.IsType(t, errors.ConfigurationError{}, err)
	_, err = CreatePreTable(opts, 4, wordKey, countValue, sumCounts, nil)
	require.IsType(t, errors.ConfigurationError{}, err)
}

func TestCreateDoesNotMutateOptions(t *testing.T) {
	opts := createTestOptions(t)
	table, err := CreatePreTable(opts, 4, wordKey, countValue, sumCounts, newRoutingSink())
	require.Nil(t, err)
	table.Dispose()
	// numWorkers overrides the partition count on a private copy only
	require.Equal(t, 0, opts.NumPartitions)
	require.Equal(t, 0, opts.InitialCapacity)
}

func TestInsertPairSkipsExtraction(t *testing.T) {
	emitter := newMapEmitter()
	table, err := CreatePostTable(createTestOptions(t), wordKey, countValue, sumCounts, emitter)
	require.Nil(t, err)
	defer table.Dispose()
	require.Nil(t, table.InsertPair([]byte("direct"), uint64(7)))
	require.Nil(t, table.InsertPair([]byte("direct"), uint64(3)))
	require.Equal(t, 1, table.Size())
	require.Nil(t, table.Flush())
	require.Equal(t, map[string]uint64{"direct": 10}, emitter.pairs)
}

func TestExtractorErrorsSurface(t *testing.T) {
	emitter := newMapEmitter()
	badKey := func(item interface{}) (interface{}, error) {
		return nil, fmt.Errorf("no key")
	}
	table, err := CreatePostTable(createTestOptions(t), badKey, countValue, sumCounts, emitter)
	require.Nil(t, err)
	defer table.Dispose()
	err = table.Insert(&wordCount{word: "x", count: 1})
	require.NotNil(t, err)
	require.Equal(t, "no key", err.Error())
}

func TestByIndexPostTable(t *testing.T) {
	opts := &TableOptions{
		MemoryBudgetBytes: 1 << 20,
		Addressing:        sieve.ByIndex,
		KeySpaceSize:      100,
		Storage:           sieve.StorageDirect,
		KeyCodec:          sieve.Uint64Codec{},
		ValueCodec:        sieve.Uint64Codec{},
		TempDir:           t.TempDir(),
	}
	indexKey := func(item interface{}) (interface{}, error) {
		return item.(uint64) % 100, nil
	}
	one := func(item interface{}) (interface{}, error) {
		return uint64(1), nil
	}
	counts := make(map[uint64]uint64)
	var mu sync.Mutex
	table, err := CreatePostTable(opts, indexKey, one, sumCounts, emitFunc(func(key interface{}, value interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		counts[key.(uint64)] += value.(uint64)
		return nil
	}))
	require.Nil(t, err)
	defer table.Dispose()
	for i := uint64(0); i < 1000; i++ {
		require.Nil(t, table.Insert(i))
	}
	require.Nil(t, table.Flush())
	require.Equal(t, 100, len(counts))
	for idx, c := range counts {
		require.Equal(t, uint64(10), c, "index %d", idx)
	}
}

// emitFunc adapts a function to the Emitter interface
type emitFunc func(key interface{}, value interface{}) error

func (f emitFunc) Emit(key interface{}, value interface{}) error {
	return f(key, value)
}

func TestSplitBudget(t *testing.T) {
	pre, post := SplitBudget(1000)
	require.Equal(t, int64(500), pre)
	require.Equal(t, int64(500), post)
	pre, post = SplitBudget(1001)
	require.Equal(t, int64(500), pre)
	require.Equal(t, int64(501), post)
	require.Equal(t, int64(1001), pre+post)
}
