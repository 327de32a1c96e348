package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_DefaultsToGlobal(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
	assert.Same(t, slog.Default(), FromContext(WithLogger(context.Background(), nil)))
}

func TestWith_AppendsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	ctx = With(ctx, "graphID", "main")
	ctx = With(ctx, "input", "drop_task")
	FromContext(ctx).Info("Dropped.")

	assert.Contains(t, buf.String(), "graphID=main")
	assert.Contains(t, buf.String(), "input=drop_task")
	assert.Contains(t, buf.String(), `msg=Dropped.`)
}
