package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context is what every repo method receives: the caller's context, plus
// the gorm handle when the call must join an enclosing transaction. A nil
// Tx means the repo runs against its own connection.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
