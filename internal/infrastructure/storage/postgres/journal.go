package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "agrostock/internal/core/context"
	"agrostock/internal/core/id"
	"agrostock/internal/domain/ledger"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// JournalEntry is one recorded ledger operation with its full result
// payload. Large payloads (multi-line receipts, reconciliation sweeps) are
// stored zstd-compressed.
type JournalEntry struct {
	ID                id.ID           `db:"id"`
	Operation         string          `db:"operation"`
	ItemID            id.ID           `db:"item_id"`
	ActorID           string          `db:"actor_id"`
	Module            string          `db:"module"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// Journal persists ledger operation records for later inspection. It is a
// diagnostic trail, not the transaction log; the ledger treats writes here
// as best-effort.
type Journal struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

var _ ledger.Journal = (*Journal)(nil)

// NewJournal creates a journal backed by the ledger_journal table.
func NewJournal(txManager *TxManager) (*Journal, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Journal{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record stores one operation.
func (j *Journal) Record(ctx context.Context, op string, itemID id.ID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	entry := JournalEntry{
		ID:              id.New(),
		Operation:       op,
		ItemID:          itemID,
		ActorID:         appctx.GetActorID(ctx),
		Module:          appctx.GetModule(ctx),
		Payload:         raw,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	if len(entry.Payload) > j.compressThreshold {
		entry.PayloadCompressed = j.encoder.EncodeAll(entry.Payload, nil)
		entry.Payload = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO ledger_journal (
			id, operation, item_id, actor_id, module,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := j.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.Operation, entry.ItemID, entry.ActorID, entry.Module,
		entry.Payload, entry.PayloadCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	return err
}

// History retrieves recorded operations for an item, newest first.
func (j *Journal) History(ctx context.Context, itemID id.ID, limit int) ([]JournalEntry, error) {
	sql := `
		SELECT id, operation, item_id, actor_id, module,
			   payload, payload_compressed, compression_algo, created_at
		FROM ledger_journal
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := j.txManager.GetQuerier(ctx).Query(ctx, sql, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		err := rows.Scan(
			&e.ID, &e.Operation, &e.ItemID, &e.ActorID, &e.Module,
			&e.Payload, &e.PayloadCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.PayloadCompressed) > 0 {
			decompressed, err := j.decoder.DecodeAll(e.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress payload: %w", err)
			}
			e.Payload = decompressed
			e.PayloadCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
