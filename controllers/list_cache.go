package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/utils"
)

const (
	articleListPrefix  = "cache:articles:"
	taxonomyListPrefix = "cache:taxonomy:"
	categoryListKey    = taxonomyListPrefix + "categories"
	tagListKey         = taxonomyListPrefix + "tags"

	cacheHeader = "X-Cache"
)

// cachedBody is the cached part of a list envelope; timestamps are stamped per response.
type cachedBody struct {
	Data       json.RawMessage  `json:"data"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// ListCache serves public list responses from utils.Cache. Concurrent misses for
// one key share a single load.
type ListCache struct {
	cache *utils.Cache
	group singleflight.Group
}

func NewListCache(cache *utils.Cache) *ListCache {
	return &ListCache{cache: cache}
}

// load returns the cached body for key, running fn on a miss. fn's result must
// marshal to an object with a "data" field.
func (l *ListCache) load(ctx context.Context, key string, fn func() (interface{}, error)) (*cachedBody, bool, error) {
	if b, ok := l.cache.GetBytes(ctx, key); ok {
		var body cachedBody
		if err := json.Unmarshal(b, &body); err == nil {
			return &body, true, nil
		}
	}
	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(res)
		if err != nil {
			return nil, utils.Unexpected(err)
		}
		l.cache.SetBytes(ctx, key, b, 0)
		return b, nil
	})
	if err != nil {
		return nil, false, err
	}
	var body cachedBody
	if err := json.Unmarshal(v.([]byte), &body); err != nil {
		return nil, false, utils.Unexpected(err)
	}
	return &body, false, nil
}

// serve writes the list envelope for key, loading it through fn on a miss.
func (l *ListCache) serve(ctx *gin.Context, key string, fn func() (interface{}, error)) error {
	body, hit, err := l.load(ctx.Request.Context(), key, fn)
	if err != nil {
		return err
	}
	if hit {
		ctx.Header(cacheHeader, "HIT")
	} else {
		ctx.Header(cacheHeader, "MISS")
	}
	utils.Respond(ctx, http.StatusOK, utils.Envelope{Success: true, Data: body.Data, Pagination: body.Pagination})
	return nil
}

// Invalidate drops every cached list. Article lists embed category and tag names
// and taxonomy lists carry article counts, so a change to either side clears both.
func (l *ListCache) Invalidate(ctx context.Context) {
	l.cache.InvalidateByPrefix(ctx, articleListPrefix)
	l.cache.InvalidateByPrefix(ctx, taxonomyListPrefix)
}
