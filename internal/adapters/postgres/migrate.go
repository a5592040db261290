package postgres

import (
	"context"
	_ "embed"
	"strconv"
	"strings"

	"agentsplatform/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// Schema renders the DDL for the given embedding dimension
func Schema(embeddingDims int) string {
	return strings.ReplaceAll(schemaSQL, "{{EMBEDDING_DIMS}}", strconv.Itoa(embeddingDims))
}

// Migrate creates every table the platform uses. All statements are idempotent.
func (c *Client) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema(c.embeddingDims)); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	c.log.Infow("Schema applied", "embedding_dims", c.embeddingDims)
	return nil
}
