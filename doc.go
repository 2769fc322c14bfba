/*
Package idbstore manages one collection of schema-less records inside a named,
versioned database, on top of a key-value store (Bolt by default, Badger or
process memory on request).

We implement:

1. Connections. A Manager goes through Unopened, Opening, then Open or
Failed. Record operations on a Manager that is not open fail with
NotConnected.

2. Upgrades. Opening at a higher version than the stored one creates the
collection, or adds the indexes that declared fields lack, filling them from
existing records. The schema change and the version bump commit together.

An upgrade, backfill included, runs as one transaction. Bolt and the memory
backend accept it at any size. Badger caps a transaction at 15% of its
memtable size, about 100,000 entries with default options, and a backfill
writes one data entry plus one entry per added index for every record. An
upgrade over that cap fails with OpenFailure wrapping badger.ErrTxnTooBig,
leaving the database as it was.

3. Records. Records get auto-incremented integer primary keys and can be
added, listed, looked up by index, merged with a patch and deleted. Every
operation runs in its own transaction.

# Technical Details

**Buckets.**
We rely on scoped namespaces for keys called buckets. Bolt supports them
natively; the Badger adapter simulates them with key prefixes. Each collection
has a root bucket holding its state, a "data" sub-bucket, and one "i_<field>"
sub-bucket per index. The database version lives in the "_idb" bucket.

**Index ordinals.**
We assign a unique positive integer ordinal to each index. These values are
never reused.

**Collection state.**
We store a meta document per collection holding the key generator and the
indexes that exist, with their ordinals and uniqueness. The stored state, not
the declared fields, decides which indexes are maintained.

## Binary encoding

**Primary keys** are 8-byte big-endian integers.

**Index keys** are type-tagged and order-preserving (numbers, then dates,
strings, binary and arrays). Unique indexes map an index key to a primary key;
non-unique indexes store the index key followed by the primary key, with an
empty value.

**Value**: value header, then encoded data, then encoded index key records.

**Value header**:
1. Flags (uvarint), including the body encoding.
2. Database version at write time (uvarint).
3. Modification count (uvarint).
4. Data size (uvarint).
5. Index size (uvarint).

**Value data**: msgpack (or JSON) of the record without its primary key.

**Index key records** (inside a value) record the keys contributed by this
record, so that updates and deletes know which index entries to remove. Format:
1. Number of entries (uvarint).
2. For each entry: index ordinal (uvarint), key length (uvarint), key bytes.
*/
package idbstore
