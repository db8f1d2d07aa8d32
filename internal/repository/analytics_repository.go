package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

// AnalyticsRepository serves the aggregate queries behind the analytics
// endpoints.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type statusCount struct {
	Status models.RequestStatus `db:"status"`
	Count  int                  `db:"count"`
}

type priorityCount struct {
	Priority models.RequestPriority `db:"priority"`
	Count    int                    `db:"count"`
}

// StatusCounts groups requests by workflow status.
func (r *AnalyticsRepository) StatusCounts(ctx context.Context) (map[models.RequestStatus]int, error) {
	var rows []statusCount
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM requests GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	counts := make(map[models.RequestStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// PriorityCounts groups requests by priority.
func (r *AnalyticsRepository) PriorityCounts(ctx context.Context) (map[models.RequestPriority]int, error) {
	var rows []priorityCount
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT priority, COUNT(*) AS count FROM requests GROUP BY priority`); err != nil {
		return nil, fmt.Errorf("count requests by priority: %w", err)
	}
	counts := make(map[models.RequestPriority]int, len(rows))
	for _, row := range rows {
		counts[row.Priority] = row.Count
	}
	return counts, nil
}

// DatasetDemand counts requests per dataset, most requested first.
func (r *AnalyticsRepository) DatasetDemand(ctx context.Context, limit int) ([]models.DatasetDemand, error) {
	if limit <= 0 {
		limit = 10
	}
	var demand []models.DatasetDemand
	const query = `SELECT rd.dataset_id, d.name AS dataset_name, COUNT(DISTINCT rd.request_id) AS request_count
FROM request_datasets rd
JOIN datasets d ON d.id = rd.dataset_id
GROUP BY rd.dataset_id, d.name
ORDER BY request_count DESC
LIMIT $1`
	if err := r.db.SelectContext(ctx, &demand, query, limit); err != nil {
		return nil, fmt.Errorf("dataset demand: %w", err)
	}
	return demand, nil
}

// AutoApprovedCount counts approved requests that never had a review row, the
// definition of the auto-approve path.
func (r *AnalyticsRepository) AutoApprovedCount(ctx context.Context) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM requests r
WHERE r.status = 'approved'
AND NOT EXISTS (SELECT 1 FROM request_reviews rr WHERE rr.request_id = r.id)`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count auto approved: %w", err)
	}
	return count, nil
}

// ApprovedCount counts all approved requests.
func (r *AnalyticsRepository) ApprovedCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM requests WHERE status = 'approved'`); err != nil {
		return 0, fmt.Errorf("count approved: %w", err)
	}
	return count, nil
}
