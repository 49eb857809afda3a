//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	"seekbot/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage requires the 'sqlite' build tag")
}
