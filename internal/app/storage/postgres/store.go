// Package postgres implements the storage interfaces backed by PostgreSQL.
// Amounts are stored as NUMERIC(78,0), which covers the full 256-bit range,
// and moved through the driver as decimal strings.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/lib/pq"

	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/card"
	"github.com/sendgft/contracts/internal/app/domain/gift"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/domain/registry"
	"github.com/sendgft/contracts/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.GiftStore = (*Store)(nil)
var _ storage.CardStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.RateStore = (*Store)(nil)
var _ storage.RegistryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gift_gifts (
			id BIGSERIAL PRIMARY KEY,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			card_id BIGINT NOT NULL,
			message TEXT NOT NULL,
			native_value NUMERIC(78,0) NOT NULL,
			erc20 JSONB NOT NULL,
			nfts JSONB NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			opened BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			claimed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS gift_gifts_sender_idx ON gift_gifts (sender, id)`,
		`CREATE INDEX IF NOT EXISTS gift_gifts_recipient_idx ON gift_gifts (recipient, id)`,
		`CREATE TABLE IF NOT EXISTS gift_cards (
			id BIGSERIAL PRIMARY KEY,
			owner TEXT NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			fee_token TEXT NOT NULL,
			fee_value NUMERIC(78,0) NOT NULL,
			enabled BOOLEAN NOT NULL,
			approved BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gift_settlements (
			id TEXT PRIMARY KEY,
			card_id BIGINT NOT NULL,
			card_owner TEXT NOT NULL,
			fee_token TEXT NOT NULL,
			fee_amount NUMERIC(78,0) NOT NULL,
			tax NUMERIC(78,0) NOT NULL,
			earnings NUMERIC(78,0) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gift_taxes (
			token TEXT PRIMARY KEY,
			amount NUMERIC(78,0) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gift_earnings (
			owner TEXT NOT NULL,
			token TEXT NOT NULL,
			amount NUMERIC(78,0) NOT NULL,
			PRIMARY KEY (owner, token)
		)`,
		`CREATE TABLE IF NOT EXISTS gift_rates (
			token_from TEXT NOT NULL,
			token_to TEXT NOT NULL,
			rate NUMERIC(78,0) NOT NULL,
			PRIMARY KEY (token_from, token_to)
		)`,
		`CREATE TABLE IF NOT EXISTS gift_routing (
			selector TEXT PRIMARY KEY,
			module_name TEXT NOT NULL,
			module_address TEXT NOT NULL,
			module_version TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- GiftStore --------------------------------------------------------------

func (s *Store) CreateGift(ctx context.Context, g gift.Gift) (gift.Gift, error) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	erc20JSON, nftsJSON, err := marshalBundle(g.Params)
	if err != nil {
		return gift.Gift{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO gift_gifts (sender, recipient, card_id, message, native_value, erc20, nfts, content_hash, opened, created_at, claimed_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, g.Sender.Normalize(), g.Params.Recipient.Normalize(), g.Params.CardID, g.Params.Message,
		decString(g.Params.NativeValue), erc20JSON, nftsJSON, g.ContentHash, g.Opened,
		g.CreatedAt, toNullTime(g.ClaimedAt))
	if err := row.Scan(&g.ID); err != nil {
		return gift.Gift{}, err
	}
	return g, nil
}

func (s *Store) UpdateGift(ctx context.Context, g gift.Gift) (gift.Gift, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE gift_gifts
		SET content_hash = $2, opened = $3, claimed_at = $4
		WHERE id = $1
	`, g.ID, g.ContentHash, g.Opened, toNullTime(g.ClaimedAt))
	if err != nil {
		return gift.Gift{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return gift.Gift{}, fmt.Errorf("gift %d: %w", g.ID, gift.ErrNonexistentToken)
	}
	return g, nil
}

func (s *Store) DeleteGift(ctx context.Context, id uint64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM gift_gifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("gift %d: %w", id, gift.ErrNonexistentToken)
	}
	return nil
}

func (s *Store) GetGift(ctx context.Context, id uint64) (gift.Gift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender, recipient, card_id, message, native_value::text, erc20, nfts, content_hash, opened, created_at, claimed_at
		FROM gift_gifts
		WHERE id = $1
	`, id)

	g, err := scanGift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gift.Gift{}, fmt.Errorf("gift %d: %w", id, gift.ErrNonexistentToken)
	}
	return g, err
}

func (s *Store) LastGiftID(ctx context.Context) (uint64, error) {
	var last uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM gift_gifts`).Scan(&last)
	return last, err
}

func (s *Store) ListSentGifts(ctx context.Context, sender asset.Address) ([]uint64, error) {
	return s.listGiftIDs(ctx, `SELECT id FROM gift_gifts WHERE sender = $1 ORDER BY id`, sender)
}

func (s *Store) ListReceivedGifts(ctx context.Context, recipient asset.Address) ([]uint64, error) {
	return s.listGiftIDs(ctx, `SELECT id FROM gift_gifts WHERE recipient = $1 ORDER BY id`, recipient)
}

func (s *Store) listGiftIDs(ctx context.Context, query string, account asset.Address) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, query, account.Normalize())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// --- CardStore --------------------------------------------------------------

func (s *Store) CreateCard(ctx context.Context, c card.Card) (card.Card, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO gift_cards (owner, content_hash, fee_token, fee_value, enabled, approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		RETURNING id
	`, c.Owner.Normalize(), c.ContentHash, c.Fee.TokenContract.Normalize(), decString(c.Fee.Value),
		c.Enabled, c.Approved, c.CreatedAt, c.UpdatedAt)
	if err := row.Scan(&c.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return card.Card{}, fmt.Errorf("card %q: %w", c.ContentHash, card.ErrAlreadyAdded)
		}
		return card.Card{}, err
	}
	return c, nil
}

func (s *Store) UpdateCard(ctx context.Context, c card.Card) (card.Card, error) {
	c.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE gift_cards
		SET fee_token = $2, fee_value = $3::numeric, enabled = $4, approved = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.Fee.TokenContract.Normalize(), decString(c.Fee.Value), c.Enabled, c.Approved, c.UpdatedAt)
	if err != nil {
		return card.Card{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return card.Card{}, fmt.Errorf("card %d: %w", c.ID, card.ErrNonexistentToken)
	}
	return c, nil
}

func (s *Store) GetCard(ctx context.Context, id uint64) (card.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, content_hash, fee_token, fee_value::text, enabled, approved, created_at, updated_at
		FROM gift_cards
		WHERE id = $1
	`, id)

	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return card.Card{}, fmt.Errorf("card %d: %w", id, card.ErrNonexistentToken)
	}
	return c, err
}

func (s *Store) GetCardByContentHash(ctx context.Context, contentHash string) (card.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, content_hash, fee_token, fee_value::text, enabled, approved, created_at, updated_at
		FROM gift_cards
		WHERE content_hash = $1
	`, contentHash)

	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return card.Card{}, fmt.Errorf("card %q: %w", contentHash, card.ErrNonexistentToken)
	}
	return c, err
}

func (s *Store) LastCardID(ctx context.Context) (uint64, error) {
	var last uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM gift_cards`).Scan(&last)
	return last, err
}

// --- LedgerStore ------------------------------------------------------------

func (s *Store) CreditFee(ctx context.Context, stl card.Settlement) error {
	if stl.ID == "" {
		stl.ID = uuid.NewString()
	}
	if stl.CreatedAt.IsZero() {
		stl.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	token := stl.FeeToken.Normalize()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gift_settlements (id, card_id, card_owner, fee_token, fee_amount, tax, earnings, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8)
	`, stl.ID, stl.CardID, stl.CardOwner.Normalize(), token,
		decString(stl.FeeAmount), decString(stl.Tax), decString(stl.Earnings), stl.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gift_taxes (token, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (token) DO UPDATE SET amount = gift_taxes.amount + EXCLUDED.amount
	`, token, decString(stl.Tax)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gift_earnings (owner, token, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner, token) DO UPDATE SET amount = gift_earnings.amount + EXCLUDED.amount
	`, stl.CardOwner.Normalize(), token, decString(stl.Earnings)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) TaxBalance(ctx context.Context, token asset.Address) (*uint256.Int, error) {
	return s.scanAmount(s.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT amount::text FROM gift_taxes WHERE token = $1), '0')
	`, token.Normalize()))
}

func (s *Store) EarningsBalance(ctx context.Context, owner, token asset.Address) (*uint256.Int, error) {
	return s.scanAmount(s.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT amount::text FROM gift_earnings WHERE owner = $1 AND token = $2), '0')
	`, owner.Normalize(), token.Normalize()))
}

func (s *Store) TotalEarnings(ctx context.Context, token asset.Address) (*uint256.Int, error) {
	return s.scanAmount(s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text FROM gift_earnings WHERE token = $1
	`, token.Normalize()))
}

func (s *Store) TakeTaxes(ctx context.Context, token asset.Address) (*uint256.Int, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM gift_taxes WHERE token = $1 RETURNING amount::text
	`, token.Normalize())
	amount, err := s.scanAmount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return uint256.NewInt(0), nil
	}
	return amount, err
}

func (s *Store) TakeEarnings(ctx context.Context, owner, token asset.Address) (*uint256.Int, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM gift_earnings WHERE owner = $1 AND token = $2 RETURNING amount::text
	`, owner.Normalize(), token.Normalize())
	amount, err := s.scanAmount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return uint256.NewInt(0), nil
	}
	return amount, err
}

func (s *Store) CreditTaxes(ctx context.Context, token asset.Address, amount *uint256.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gift_taxes (token, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (token) DO UPDATE SET amount = gift_taxes.amount + EXCLUDED.amount
	`, token.Normalize(), decString(amount))
	return err
}

func (s *Store) CreditEarnings(ctx context.Context, owner, token asset.Address, amount *uint256.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gift_earnings (owner, token, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner, token) DO UPDATE SET amount = gift_earnings.amount + EXCLUDED.amount
	`, owner.Normalize(), token.Normalize(), decString(amount))
	return err
}

func (s *Store) ListSettlements(ctx context.Context, token asset.Address) ([]card.Settlement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, card_owner, fee_token, fee_amount::text, tax::text, earnings::text, created_at
		FROM gift_settlements
		WHERE $1 = '' OR fee_token = $1
		ORDER BY created_at
	`, token.Normalize())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []card.Settlement
	for rows.Next() {
		var (
			stl                   card.Settlement
			feeRaw, taxRaw, eRaw  string
			owner, feeToken       string
		)
		if err := rows.Scan(&stl.ID, &stl.CardID, &owner, &feeToken, &feeRaw, &taxRaw, &eRaw, &stl.CreatedAt); err != nil {
			return nil, err
		}
		stl.CardOwner = asset.Address(owner)
		stl.FeeToken = asset.Address(feeToken)
		if stl.FeeAmount, err = parseAmount(feeRaw); err != nil {
			return nil, err
		}
		if stl.Tax, err = parseAmount(taxRaw); err != nil {
			return nil, err
		}
		if stl.Earnings, err = parseAmount(eRaw); err != nil {
			return nil, err
		}
		result = append(result, stl)
	}
	return result, rows.Err()
}

// --- RateStore --------------------------------------------------------------

func (s *Store) SetRatePair(ctx context.Context, pair oracle.RatePair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO gift_rates (token_from, token_to, rate)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (token_from, token_to) DO UPDATE SET rate = EXCLUDED.rate
	`
	a, b := pair.TokenA.Normalize(), pair.TokenB.Normalize()
	if _, err := tx.ExecContext(ctx, upsert, a, b, decString(pair.RateAB)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, b, a, decString(pair.RateBA)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetRate(ctx context.Context, from, to asset.Address) (*uint256.Int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rate::text FROM gift_rates WHERE token_from = $1 AND token_to = $2
	`, from.Normalize(), to.Normalize())
	rate, err := s.scanAmount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rate %s->%s: %w", from, to, oracle.ErrUnknownRate)
	}
	return rate, err
}

// --- RegistryStore ----------------------------------------------------------

func (s *Store) ApplyRouting(ctx context.Context, upserts map[registry.Selector]registry.Module, deletes []registry.Selector) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for sel, mod := range upserts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gift_routing (selector, module_name, module_address, module_version)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (selector) DO UPDATE
			SET module_name = EXCLUDED.module_name,
			    module_address = EXCLUDED.module_address,
			    module_version = EXCLUDED.module_version
		`, string(sel), mod.Name, mod.Address, mod.Version); err != nil {
			return err
		}
	}
	if len(deletes) > 0 {
		sels := make([]string, len(deletes))
		for i, sel := range deletes {
			sels[i] = string(sel)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM gift_routing WHERE selector = ANY($1)
		`, pq.Array(sels)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSelector(ctx context.Context, sel registry.Selector) (registry.Module, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT module_name, module_address, module_version
		FROM gift_routing
		WHERE selector = $1
	`, string(sel))

	var mod registry.Module
	if err := row.Scan(&mod.Name, &mod.Address, &mod.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Module{}, fmt.Errorf("selector %q: %w", sel, registry.ErrUnknownSelector)
		}
		return registry.Module{}, err
	}
	return mod, nil
}

func (s *Store) ListSelectors(ctx context.Context) (map[registry.Selector]registry.Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT selector, module_name, module_address, module_version FROM gift_routing
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[registry.Selector]registry.Module)
	for rows.Next() {
		var (
			sel string
			mod registry.Module
		)
		if err := rows.Scan(&sel, &mod.Name, &mod.Address, &mod.Version); err != nil {
			return nil, err
		}
		result[registry.Selector(sel)] = mod
	}
	return result, rows.Err()
}

// --- helpers ----------------------------------------------------------------

type bundleToken struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

type bundleNFT struct {
	Token   string `json:"token"`
	TokenID uint64 `json:"token_id"`
}

func marshalBundle(p gift.Params) ([]byte, []byte, error) {
	erc20 := make([]bundleToken, len(p.ERC20))
	for i, tv := range p.ERC20 {
		erc20[i] = bundleToken{Token: string(tv.TokenContract.Normalize()), Value: decString(tv.Value)}
	}
	nfts := make([]bundleNFT, len(p.NFTs))
	for i, nv := range p.NFTs {
		nfts[i] = bundleNFT{Token: string(nv.TokenContract.Normalize()), TokenID: nv.TokenID}
	}

	erc20JSON, err := json.Marshal(erc20)
	if err != nil {
		return nil, nil, err
	}
	nftsJSON, err := json.Marshal(nfts)
	if err != nil {
		return nil, nil, err
	}
	return erc20JSON, nftsJSON, nil
}

func scanGift(row *sql.Row) (gift.Gift, error) {
	var (
		g                  gift.Gift
		sender, recipient  string
		nativeRaw          string
		erc20Raw, nftsRaw  []byte
		claimedAt          sql.NullTime
	)
	if err := row.Scan(&g.ID, &sender, &recipient, &g.Params.CardID, &g.Params.Message,
		&nativeRaw, &erc20Raw, &nftsRaw, &g.ContentHash, &g.Opened, &g.CreatedAt, &claimedAt); err != nil {
		return gift.Gift{}, err
	}

	g.Sender = asset.Address(sender)
	g.Params.Recipient = asset.Address(recipient)
	if claimedAt.Valid {
		g.ClaimedAt = claimedAt.Time.UTC()
	}

	var err error
	if g.Params.NativeValue, err = parseAmount(nativeRaw); err != nil {
		return gift.Gift{}, err
	}

	var erc20 []bundleToken
	if err := json.Unmarshal(erc20Raw, &erc20); err != nil {
		return gift.Gift{}, err
	}
	for _, bt := range erc20 {
		v, err := parseAmount(bt.Value)
		if err != nil {
			return gift.Gift{}, err
		}
		g.Params.ERC20 = append(g.Params.ERC20, asset.TokenValue{TokenContract: asset.Address(bt.Token), Value: v})
	}

	var nfts []bundleNFT
	if err := json.Unmarshal(nftsRaw, &nfts); err != nil {
		return gift.Gift{}, err
	}
	for _, bn := range nfts {
		g.Params.NFTs = append(g.Params.NFTs, asset.NFTValue{TokenContract: asset.Address(bn.Token), TokenID: bn.TokenID})
	}
	return g, nil
}

func scanCard(row *sql.Row) (card.Card, error) {
	var (
		c               card.Card
		owner, feeToken string
		feeRaw          string
	)
	if err := row.Scan(&c.ID, &owner, &c.ContentHash, &feeToken, &feeRaw,
		&c.Enabled, &c.Approved, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return card.Card{}, err
	}
	c.Owner = asset.Address(owner)
	c.Fee.TokenContract = asset.Address(feeToken)

	var err error
	if c.Fee.Value, err = parseAmount(feeRaw); err != nil {
		return card.Card{}, err
	}
	return c, nil
}

func (s *Store) scanAmount(row *sql.Row) (*uint256.Int, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	return parseAmount(raw)
}

func decString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseAmount(raw string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", raw, err)
	}
	return v, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
