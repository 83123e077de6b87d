package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/chainledger/internal/config"
	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// Error codes used in structured output.
const (
	ErrCodeConfig    = "E_CONFIG"
	ErrCodeRejected  = "E_REJECTED"
	ErrCodeNotFound  = "E_NOT_FOUND"
	ErrCodeIntegrity = "E_INTEGRITY"
	ErrCodeInput     = "E_INPUT"
)

// loadConfig reads the ledger definition named by --config.
func (o *RootOptions) loadConfig() (config.File, error) {
	f, err := config.Load(o.Config)
	if err != nil {
		return config.File{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if f.Source != "" {
		o.Logger.Debug("config loaded", zap.String("path", f.Source), zap.String("ledger", f.ID))
	}
	return f, nil
}

// openLedger loads the config and builds an engine from it. The caller
// shuts the engine down.
func (o *RootOptions) openLedger(ctx context.Context) (*engine.Engine, config.File, error) {
	f, err := o.loadConfig()
	if err != nil {
		return nil, config.File{}, err
	}
	e, err := engine.New(ctx, f.LedgerConfig, engine.WithLogger(o.Logger))
	if err != nil {
		return nil, config.File{}, ledgerExit(fmt.Sprintf("failed to open ledger %q", f.ID), err)
	}
	return e, f, nil
}

func (o *RootOptions) requestContext() core.RequestContext {
	return core.NewRequestContext(o.Requester)
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeRecords accepts a JSON array, a JSON object with a "records"
// array, or the same shapes in YAML when path ends in .yaml or .yml.
func decodeRecords(path string, data []byte) ([]core.Record, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = converted
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Records []core.Record `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		return wrapped.Records, nil
	}

	var recs []core.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return recs, nil
}

// fillRecord assigns a UUIDv7 id and the current time to records that
// lack them.
func fillRecord(rec *core.Record, ids engine.IDGenerator, now uint64) {
	if rec.ID == "" {
		rec.ID = ids.Generate()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = now
	}
}
