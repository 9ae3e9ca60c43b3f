// Package sieve contains the core components of Sieve, a memory-bounded
// partitioned reduce table for distributed group-by/reduce over key/value
// streams which may exceed main memory. This root package defines types which
// are employed during the regular use of the library, as well as in the
// extension of the library, and is an excellent overview of Sieve's key
// concepts. Concrete tables are constructed via the reduce subpackage.
package sieve
