package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

// LowStockThreshold is the stock level at or below which a product is
// flagged on the dashboard.
const LowStockThreshold = 5

const (
	GranularityDay   = "day"
	GranularityMonth = "month"
)

var analyticsPeriods = map[string]struct {
	granularity string
	count       int
}{
	"7d":  {GranularityDay, 7},
	"30d": {GranularityDay, 30},
	"3m":  {GranularityMonth, 3},
	"1y":  {GranularityMonth, 12},
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers       int64            `json:"totalUsers"`
	TotalProducts    int64            `json:"totalProducts"`
	TotalOrders      int64            `json:"totalOrders"`
	TotalRevenue     decimal.Decimal  `json:"totalRevenue"`
	PendingOrders    int64            `json:"pendingOrders"`
	DeliveredOrders  int64            `json:"deliveredOrders"`
	NewUsers         int64            `json:"newUsersLast7Days"`
	NewOrders        int64            `json:"newOrdersLast7Days"`
	LowStockProducts []models.Product `json:"lowStockProducts"`
	RecentOrders     []models.Order   `json:"recentOrders"`
}

// Bucket is one time slot of an analytics series.
type Bucket struct {
	Label    string          `json:"label"`
	Start    time.Time       `json:"start"`
	Orders   int64           `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
	NewUsers int64           `json:"newUsers"`
}

// Analytics is a zero-filled series for one period.
type Analytics struct {
	Period      string   `json:"period"`
	Granularity string   `json:"granularity"`
	Buckets     []Bucket `json:"buckets"`
}

// DashboardService reads reporting aggregates. It never writes.
type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: time.Now}
}

// Stats builds the overview. Revenue counts delivered orders only.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	since := s.now().UTC().AddDate(0, 0, -7)
	stats := &DashboardStats{TotalRevenue: decimal.Zero}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&models.User{})},
		{&stats.TotalProducts, db.Model(&models.Product{})},
		{&stats.TotalOrders, db.Model(&models.Order{})},
		{&stats.PendingOrders, db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending)},
		{&stats.DeliveredOrders, db.Model(&models.Order{}).Where("status = ?", models.OrderStatusDelivered)},
		{&stats.NewUsers, db.Model(&models.User{}).Where("created_at >= ?", since)},
		{&stats.NewOrders, db.Model(&models.Order{}).Where("created_at >= ?", since)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	var revenue decimal.NullDecimal
	if err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusDelivered).
		Select("SUM(total)").Scan(&revenue).Error; err != nil {
		return nil, err
	}
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal.Round(2)
	}

	if err := db.Where("stock <= ?", LowStockThreshold).
		Order("stock asc").Limit(10).
		Find(&stats.LowStockProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("User").
		Order("created_at desc").Limit(5).
		Find(&stats.RecentOrders).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// Analytics returns orders, delivered revenue and sign-ups per bucket for
// period ("7d", "30d", "3m" or "1y"; empty means "7d").
func (s *DashboardService) Analytics(ctx context.Context, period string) (*Analytics, error) {
	if period == "" {
		period = "7d"
	}
	buckets, granularity, err := BuildBuckets(period, s.now())
	if err != nil {
		return nil, err
	}
	start := buckets[0].Start
	db := s.db.WithContext(ctx)

	var orders []struct {
		CreatedAt time.Time
		Total     decimal.Decimal
		Status    string
	}
	if err := db.Model(&models.Order{}).
		Select("created_at", "total", "status").
		Where("created_at >= ?", start).
		Scan(&orders).Error; err != nil {
		return nil, err
	}

	var signups []time.Time
	if err := db.Model(&models.User{}).
		Where("created_at >= ?", start).
		Pluck("created_at", &signups).Error; err != nil {
		return nil, err
	}

	for _, o := range orders {
		if i := bucketIndex(buckets, o.CreatedAt); i >= 0 {
			buckets[i].Orders++
			if o.Status == models.OrderStatusDelivered {
				buckets[i].Revenue = buckets[i].Revenue.Add(o.Total)
			}
		}
	}
	for _, at := range signups {
		if i := bucketIndex(buckets, at); i >= 0 {
			buckets[i].NewUsers++
		}
	}

	return &Analytics{Period: period, Granularity: granularity, Buckets: buckets}, nil
}

// BuildBuckets returns the zero-filled buckets for period ending at now,
// oldest first. Daily buckets are labelled 2006-01-02, monthly 2006-01.
func BuildBuckets(period string, now time.Time) ([]Bucket, string, error) {
	p, ok := analyticsPeriods[period]
	if !ok {
		return nil, "", utils.NewValidationError("period", "must be one of [7d 30d 3m 1y]")
	}

	now = now.UTC()
	buckets := make([]Bucket, p.count)
	for i := 0; i < p.count; i++ {
		back := p.count - 1 - i
		var start time.Time
		var label string
		if p.granularity == GranularityDay {
			start = time.Date(now.Year(), now.Month(), now.Day()-back, 0, 0, 0, 0, time.UTC)
			label = start.Format("2006-01-02")
		} else {
			start = time.Date(now.Year(), now.Month()-time.Month(back), 1, 0, 0, 0, 0, time.UTC)
			label = start.Format("2006-01")
		}
		buckets[i] = Bucket{Label: label, Start: start, Revenue: decimal.Zero}
	}
	return buckets, p.granularity, nil
}

// bucketIndex finds the last bucket starting at or before at.
func bucketIndex(buckets []Bucket, at time.Time) int {
	at = at.UTC()
	if len(buckets) == 0 || at.Before(buckets[0].Start) {
		return -1
	}
	for i := len(buckets) - 1; i >= 0; i-- {
		if !at.Before(buckets[i].Start) {
			return i
		}
	}
	return -1
}
