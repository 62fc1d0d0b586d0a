// Copyright 2018 The go-klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"errors"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cuprate-go/cuprated/log"
)

var logger = log.NewModuleLogger(log.ModuleStorage)

// Cache is the generic eviction cache used for the RandomX VM LRU, the
// header hot-cache and the output lookup cache. No sharded-cache
// variant is provided: none of this repo's caches are keyed densely
// enough by address/hash to need shard-local locks, so that complexity
// is dropped rather than carried along unused.
type Cache interface {
	Add(key interface{}, value interface{}) (evicted bool)
	Get(key interface{}) (value interface{}, ok bool)
	Contains(key interface{}) bool
	Remove(key interface{})
	Len() int
	Purge()
}

type lruCache struct {
	lru *lru.Cache
}

func (c *lruCache) Add(key, value interface{}) (evicted bool) { return c.lru.Add(key, value) }
func (c *lruCache) Get(key interface{}) (interface{}, bool) { return c.lru.Get(key) }
func (c *lruCache) Contains(key interface{}) bool { return c.lru.Contains(key) }
func (c *lruCache) Remove(key interface{}) { c.lru.Remove(key) }
func (c *lruCache) Len() int { return c.lru.Len() }
func (c *lruCache) Purge() { c.lru.Purge() }

// NewLRUCache returns a fixed-size LRU cache of the given size. Sizes
// below 1 are rejected rather than silently coerced, since a size-0
// RandomX VM cache would defeat the whole point of VM cache.
func NewLRUCache(size int) (Cache, error) {
	if size < 1 {
		logger.Error("refusing to build a non-positive size cache", "size", size)
		return nil, errors.New("cache size must be positive")
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruCache{lru: l}, nil
}
