/*
Package session mediates every read, merge and lock on the session store.

Reads never fail a turn: a missing or unreadable session becomes an empty
snapshot. Writes are merges wrapped in *domain.StoreError. Turns of the same
session can be serialized with a per-key lock that is reference counted, so
idle keys leave no trace, and optionally backed by a ports.DistributedLocker
when several engine replicas share one store.
*/
package session
