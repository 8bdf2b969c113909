package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS bets (
	id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	market_id TEXT NOT NULL,
	market_slug TEXT NOT NULL,
	condition_id TEXT NOT NULL,
	asset TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	side TEXT NOT NULL,
	token_id TEXT NOT NULL,
	order_id TEXT NOT NULL DEFAULT '',
	tranche_index INTEGER NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	shares DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL,
	result TEXT NOT NULL DEFAULT 'PENDING',
	payout DOUBLE PRECISION NOT NULL DEFAULT 0,
	placed_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ,
	redeemed_at TIMESTAMPTZ,
	redeem_tx_hash TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_bets_status ON bets(status);
CREATE INDEX IF NOT EXISTS idx_bets_market ON bets(market_id);

CREATE TABLE IF NOT EXISTS strategy_budgets (
	strategy_id TEXT PRIMARY KEY,
	initial_budget DOUBLE PRECISION NOT NULL,
	current_budget DOUBLE PRECISION NOT NULL,
	total_invested DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_returned DOUBLE PRECISION NOT NULL DEFAULT 0,
	protected_floor DOUBLE PRECISION NOT NULL DEFAULT 0,
	protection_active BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore creates a PostgreSQL store and ensures the schema exists.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, err = db.Exec(schema)
	if err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// CreateBet inserts a new pending bet.
func (p *PostgresStore) CreateBet(ctx context.Context, bet *Bet) error {
	query := `
		INSERT INTO bets (
			id, strategy_id, market_id, market_slug, condition_id,
			asset, timeframe, side, token_id, order_id, tranche_index,
			amount, price, shares, status, result, payout, placed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		bet.ID,
		bet.StrategyID,
		bet.MarketID,
		bet.MarketSlug,
		bet.ConditionID,
		string(bet.Asset),
		string(bet.Timeframe),
		string(bet.Side),
		bet.TokenID,
		bet.OrderID,
		bet.TrancheIndex,
		bet.Amount,
		bet.Price,
		bet.Shares,
		string(bet.Status),
		string(bet.Result),
		bet.Payout,
		bet.PlacedAt,
	)

	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}

	p.logger.Debug("bet-stored",
		zap.String("bet-id", bet.ID),
		zap.String("market-slug", bet.MarketSlug),
		zap.String("side", string(bet.Side)))

	return nil
}

const betColumns = `
	id, strategy_id, market_id, market_slug, condition_id,
	asset, timeframe, side, token_id, order_id, tranche_index,
	amount, price, shares, status, result, payout,
	placed_at, resolved_at, redeemed_at, redeem_tx_hash
`

func scanBet(row interface{ Scan(...interface{}) error }) (*Bet, error) {
	var bet Bet
	var asset, timeframe, side, status, result string
	var resolvedAt, redeemedAt sql.NullTime

	err := row.Scan(
		&bet.ID,
		&bet.StrategyID,
		&bet.MarketID,
		&bet.MarketSlug,
		&bet.ConditionID,
		&asset,
		&timeframe,
		&side,
		&bet.TokenID,
		&bet.OrderID,
		&bet.TrancheIndex,
		&bet.Amount,
		&bet.Price,
		&bet.Shares,
		&status,
		&result,
		&bet.Payout,
		&bet.PlacedAt,
		&resolvedAt,
		&redeemedAt,
		&bet.RedeemTxHash,
	)
	if err != nil {
		return nil, err
	}

	bet.Asset = types.Asset(asset)
	bet.Timeframe = types.Timeframe(timeframe)
	bet.Side = types.Side(side)
	bet.Status = BetStatus(status)
	bet.Result = types.Result(result)
	if resolvedAt.Valid {
		bet.ResolvedAt = &resolvedAt.Time
	}
	if redeemedAt.Valid {
		bet.RedeemedAt = &redeemedAt.Time
	}

	return &bet, nil
}

// GetBet returns the bet with the given ID.
func (p *PostgresStore) GetBet(ctx context.Context, id string) (*Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("bet %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query bet: %w", err)
	}

	return bet, nil
}

// ListBets returns bets matching the filter, oldest first.
func (p *PostgresStore) ListBets(ctx context.Context, filter BetFilter) ([]*Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE 1=1`
	args := []interface{}{}

	if filter.StrategyID != "" {
		args = append(args, filter.StrategyID)
		query += fmt.Sprintf(" AND strategy_id = $%d", len(args))
	}
	if filter.MarketID != "" {
		args = append(args, filter.MarketID)
		query += fmt.Sprintf(" AND market_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Result != "" {
		args = append(args, string(filter.Result))
		query += fmt.Sprintf(" AND result = $%d", len(args))
	}

	query += " ORDER BY placed_at ASC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	defer rows.Close()

	var bets []*Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate bets: %w", err)
	}

	return bets, nil
}

// MarkResolved transitions a pending bet to resolved. The status guard in
// the WHERE clause keeps the lifecycle forward-only.
func (p *PostgresStore) MarkResolved(ctx context.Context, id string, result types.Result, payout float64, at time.Time) error {
	query := `
		UPDATE bets
		SET status = $1, result = $2, payout = $3, resolved_at = $4
		WHERE id = $5 AND status = $6
	`

	res, err := p.db.ExecContext(ctx, query,
		string(StatusResolved), string(result), payout, at, id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("update bet: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return p.transitionError(ctx, id)
	}

	return nil
}

// MarkRedeemed transitions a bet to redeemed with the on-chain payout.
func (p *PostgresStore) MarkRedeemed(ctx context.Context, id string, payout float64, txHash string, at time.Time) error {
	query := `
		UPDATE bets
		SET status = $1, result = $2, payout = $3, redeem_tx_hash = $4, redeemed_at = $5
		WHERE id = $6 AND status != $7
	`

	res, err := p.db.ExecContext(ctx, query,
		string(StatusRedeemed), string(types.ResultWin), payout, txHash, at, id, string(StatusRedeemed))
	if err != nil {
		return fmt.Errorf("update bet: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return p.transitionError(ctx, id)
	}

	return nil
}

// transitionError distinguishes a missing bet from a blocked transition.
func (p *PostgresStore) transitionError(ctx context.Context, id string) error {
	bet, err := p.GetBet(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("bet %s is %s: %w", id, bet.Status, ErrInvalidTransition)
}

// GetBudget returns the budget for a strategy.
func (p *PostgresStore) GetBudget(ctx context.Context, strategyID string) (*StrategyBudget, error) {
	query := `
		SELECT strategy_id, initial_budget, current_budget, total_invested,
		       total_returned, protected_floor, protection_active, updated_at
		FROM strategy_budgets WHERE strategy_id = $1
	`

	var budget StrategyBudget
	err := p.db.QueryRowContext(ctx, query, strategyID).Scan(
		&budget.StrategyID,
		&budget.InitialBudget,
		&budget.CurrentBudget,
		&budget.TotalInvested,
		&budget.TotalReturned,
		&budget.ProtectedFloor,
		&budget.ProtectionActive,
		&budget.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("budget %s: %w", strategyID, ErrNotFound)
		}
		return nil, fmt.Errorf("query budget: %w", err)
	}

	return &budget, nil
}

// SaveBudget inserts or updates a strategy budget.
func (p *PostgresStore) SaveBudget(ctx context.Context, budget *StrategyBudget) error {
	query := `
		INSERT INTO strategy_budgets (
			strategy_id, initial_budget, current_budget, total_invested,
			total_returned, protected_floor, protection_active, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (strategy_id) DO UPDATE SET
			current_budget = EXCLUDED.current_budget,
			total_invested = EXCLUDED.total_invested,
			total_returned = EXCLUDED.total_returned,
			protected_floor = EXCLUDED.protected_floor,
			protection_active = EXCLUDED.protection_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		budget.StrategyID,
		budget.InitialBudget,
		budget.CurrentBudget,
		budget.TotalInvested,
		budget.TotalReturned,
		budget.ProtectedFloor,
		budget.ProtectionActive,
		budget.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}
