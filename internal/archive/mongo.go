// Package archive keeps a read-optimised copy of every order in MongoDB.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/flourish/internal/models"
)

// MongoArchive upserts order documents keyed by order id.
type MongoArchive struct {
	client *mongo.Client
	orders *mongo.Collection
}

// Connect opens the client and checks the server is reachable.
func Connect(ctx context.Context, uri, database string) (*MongoArchive, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	orders := client.Database(database).Collection("orders")
	_, err = orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}

	return &MongoArchive{client: client, orders: orders}, nil
}

// SaveOrder writes the current state of order, replacing any older copy.
func (a *MongoArchive) SaveOrder(ctx context.Context, order models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc := NewOrderDocument(order)
	_, err := a.orders.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// FindOrder loads an archived order by order number.
func (a *MongoArchive) FindOrder(ctx context.Context, orderNumber string) (*OrderDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var doc OrderDocument
	if err := a.orders.FindOne(ctx, bson.M{"order_number": orderNumber}).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

type OrderDocument struct {
	ID             string               `bson:"_id" json:"id"`
	OrderNumber    string               `bson:"order_number" json:"order_number"`
	UserID         string               `bson:"user_id" json:"user_id"`
	CustomerEmail  string               `bson:"customer_email,omitempty" json:"customer_email"`
	Status         string               `bson:"status" json:"status"`
	PaymentMethod  string               `bson:"payment_method" json:"payment_method"`
	PaymentStatus  string               `bson:"payment_status" json:"payment_status"`
	ShippingMethod string               `bson:"shipping_method" json:"shipping_method"`
	Currency       string               `bson:"currency" json:"currency"`
	Subtotal       primitive.Decimal128 `bson:"subtotal" json:"subtotal"`
	Tax            primitive.Decimal128 `bson:"tax" json:"tax"`
	ShippingCost   primitive.Decimal128 `bson:"shipping_cost" json:"shipping_cost"`
	Discount       primitive.Decimal128 `bson:"discount" json:"discount"`
	Total          primitive.Decimal128 `bson:"total" json:"total"`
	CouponCode     string               `bson:"coupon_code,omitempty" json:"coupon_code"`
	ShipTo         models.Address       `bson:"ship_to" json:"ship_to"`
	Items          []ItemDocument       `bson:"items" json:"items"`
	History        []StatusDocument     `bson:"history" json:"history"`
	CreatedAt      time.Time            `bson:"created_at" json:"created_at"`
	ArchivedAt     time.Time            `bson:"archived_at" json:"archived_at"`
}

type ItemDocument struct {
	ProductID    string               `bson:"product_id" json:"product_id"`
	Name         string               `bson:"name" json:"name"`
	SKU          string               `bson:"sku,omitempty" json:"sku"`
	VariantLabel string               `bson:"variant_label,omitempty" json:"variant_label"`
	Bundle       []string             `bson:"bundle,omitempty" json:"bundle"`
	Price        primitive.Decimal128 `bson:"price" json:"price"`
	Quantity     int                  `bson:"quantity" json:"quantity"`
	LineTotal    primitive.Decimal128 `bson:"line_total" json:"line_total"`
}

type StatusDocument struct {
	Status string    `bson:"status" json:"status"`
	Note   string    `bson:"note,omitempty" json:"note"`
	At     time.Time `bson:"at" json:"at"`
}

// NewOrderDocument flattens an order into its archive shape.
func NewOrderDocument(order models.Order) OrderDocument {
	doc := OrderDocument{
		ID:             order.ID.String(),
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID.String(),
		Status:         order.Status,
		PaymentMethod:  order.PaymentMethod,
		PaymentStatus:  order.PaymentStatus,
		ShippingMethod: order.ShippingMethod,
		Currency:       order.Currency,
		Subtotal:       toDecimal128(order.Subtotal),
		Tax:            toDecimal128(order.Tax),
		ShippingCost:   toDecimal128(order.ShippingCost),
		Discount:       toDecimal128(order.Discount),
		Total:          toDecimal128(order.Total),
		CouponCode:     order.CouponCode,
		ShipTo:         order.ShippingAddress,
		CreatedAt:      order.CreatedAt,
		ArchivedAt:     time.Now().UTC(),
	}
	if order.User != nil {
		doc.CustomerEmail = order.User.Email
	}

	for _, item := range order.Items {
		doc.Items = append(doc.Items, ItemDocument{
			ProductID:    item.ProductID.String(),
			Name:         item.Name,
			SKU:          item.SKU,
			VariantLabel: item.VariantLabel,
			Bundle:       item.SelectedBundleItems,
			Price:        toDecimal128(item.Price),
			Quantity:     item.Quantity,
			LineTotal:    toDecimal128(item.LineTotal),
		})
	}
	for _, entry := range order.StatusHistory {
		doc.History = append(doc.History, StatusDocument{Status: entry.Status, Note: entry.Note, At: entry.At})
	}
	return doc
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}
