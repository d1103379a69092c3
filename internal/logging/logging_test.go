package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "table", "Orders")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown table=Orders")

	buf.Reset()
	New(&buf, true).Debug("details")
	assert.Contains(t, buf.String(), "level=DEBUG msg=details")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	// Missing logger falls back to one that writes nowhere.
	fallback := FromContext(context.Background())
	assert.NotNil(t, fallback)
	fallback.Error("dropped")
	assert.Empty(t, buf.String())
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	logger := New(&bytes.Buffer{}, false)
	assert.Same(t, logger, OrDiscard(logger))
}
