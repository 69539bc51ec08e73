package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usethreadkit/threadkit/internal/batcher"
	"github.com/usethreadkit/threadkit/internal/cache"
)

// TestValidProject_DirectGET covers the no-batcher fallback path: the spec's
// §4.4 step 2 requires an unrecognized project_id to reject the connection,
// and that must hold whether or not a batcher is wired.
func TestValidProject_DirectGET(t *testing.T) {
	_, rdb := newTestHub(t)
	s := &Server{rdb: rdb}

	require.False(t, s.validProject(context.Background(), "tk_pub_unknown"))

	require.NoError(t, rdb.Set(context.Background(), cache.APIKeySiteKey("tk_pub_known"), "site-id", 0).Err())
	require.True(t, s.validProject(context.Background(), "tk_pub_known"))
}

// TestValidProject_ThroughBatcher covers the batcher-backed read path: the
// deduplicated read queue must resolve the same way as a direct GET.
func TestValidProject_ThroughBatcher(t *testing.T) {
	_, rdb := newTestHub(t)
	b := batcher.New(rdb, 5*time.Millisecond)
	t.Cleanup(b.Stop)
	s := &Server{rdb: rdb, batcher: b}

	require.False(t, s.validProject(context.Background(), "tk_pub_unknown"))

	require.NoError(t, rdb.Set(context.Background(), cache.APIKeySiteKey("tk_pub_known"), "site-id", 0).Err())
	require.True(t, s.validProject(context.Background(), "tk_pub_known"))
}
