package firestore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
)

const (
	customersCollection = "customers"
	productsCollection  = "products"
	ordersCollection    = "orders"
	countersCollection  = "counters"
)

// Monetary amounts are stored as fixed-point strings so no document ever
// carries a binary float.
type customerDocument struct {
	CompanyName    string    `firestore:"companyName"`
	ContactPerson  string    `firestore:"contactPerson"`
	Email          string    `firestore:"email"`
	Phone          string    `firestore:"phone"`
	BillingAddress string    `firestore:"billingAddress"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

type productDocument struct {
	SKU               string    `firestore:"sku"`
	Name              string    `firestore:"name"`
	Description       string    `firestore:"description"`
	UnitPrice         string    `firestore:"unitPrice"`
	InventoryQuantity int       `firestore:"inventoryQuantity"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

type lineItemDocument struct {
	ID                string `firestore:"id"`
	ProductID         string `firestore:"productId"`
	Quantity          int    `firestore:"quantity"`
	UnitPrice         string `firestore:"unitPrice"`
	LineTotal         string `firestore:"lineTotal"`
	FulfillmentStatus string `firestore:"fulfillmentStatus"`
	FulfilledQuantity int    `firestore:"fulfilledQuantity"`
}

type paymentDocument struct {
	ID          string    `firestore:"id"`
	Amount      string    `firestore:"amount"`
	Method      string    `firestore:"method"`
	Reference   string    `firestore:"reference"`
	PaymentDate time.Time `firestore:"paymentDate"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type orderDocument struct {
	OrderNumber     string             `firestore:"orderNumber"`
	CustomerID      string             `firestore:"customerId"`
	OrderDate       time.Time          `firestore:"orderDate"`
	Status          string             `firestore:"status"`
	PaymentStatus   string             `firestore:"paymentStatus"`
	TotalAmount     string             `firestore:"totalAmount"`
	AmountPaid      string             `firestore:"amountPaid"`
	DeliveryAddress string             `firestore:"deliveryAddress"`
	Lines           []lineItemDocument `firestore:"lines"`
	// ProductIDs duplicates the line product references so referencing
	// orders can be found with an array-contains query.
	ProductIDs []string          `firestore:"productIds"`
	Payments   []paymentDocument `firestore:"payments"`
	CreatedAt  time.Time         `firestore:"createdAt"`
	UpdatedAt  time.Time         `firestore:"updatedAt"`
}

func encodeCustomerDocument(customer domain.Customer) customerDocument {
	return customerDocument{
		CompanyName:    customer.CompanyName,
		ContactPerson:  customer.ContactPerson,
		Email:          customer.Email,
		Phone:          customer.Phone,
		BillingAddress: customer.BillingAddress,
		CreatedAt:      customer.CreatedAt.UTC(),
		UpdatedAt:      customer.UpdatedAt.UTC(),
	}
}

func decodeCustomerDocument(id string, doc customerDocument) domain.Customer {
	return domain.Customer{
		ID:             id,
		CompanyName:    doc.CompanyName,
		ContactPerson:  doc.ContactPerson,
		Email:          doc.Email,
		Phone:          doc.Phone,
		BillingAddress: doc.BillingAddress,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func encodeProductDocument(product domain.Product) productDocument {
	return productDocument{
		SKU:               product.SKU,
		Name:              product.Name,
		Description:       product.Description,
		UnitPrice:         product.UnitPrice.StringFixed(2),
		InventoryQuantity: product.InventoryQuantity,
		CreatedAt:         product.CreatedAt.UTC(),
		UpdatedAt:         product.UpdatedAt.UTC(),
	}
}

func decodeProductDocument(id string, doc productDocument) (domain.Product, error) {
	unitPrice, err := parseAmount(doc.UnitPrice, "unitPrice")
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return domain.Product{
		ID:                id,
		SKU:               doc.SKU,
		Name:              doc.Name,
		Description:       doc.Description,
		UnitPrice:         unitPrice,
		InventoryQuantity: doc.InventoryQuantity,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}, nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	lines := make([]lineItemDocument, 0, len(order.Lines))
	productIDs := make([]string, 0, len(order.Lines))
	seenProducts := make(map[string]struct{}, len(order.Lines))
	for _, line := range order.Lines {
		if _, ok := seenProducts[line.ProductID]; !ok {
			seenProducts[line.ProductID] = struct{}{}
			productIDs = append(productIDs, line.ProductID)
		}
		lines = append(lines, lineItemDocument{
			ID:                line.ID,
			ProductID:         line.ProductID,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice.StringFixed(2),
			LineTotal:         line.LineTotal.StringFixed(2),
			FulfillmentStatus: string(line.FulfillmentStatus),
			FulfilledQuantity: line.FulfilledQuantity,
		})
	}
	payments := make([]paymentDocument, 0, len(order.Payments))
	for _, payment := range order.Payments {
		payments = append(payments, paymentDocument{
			ID:          payment.ID,
			Amount:      payment.Amount.StringFixed(2),
			Method:      payment.Method,
			Reference:   payment.Reference,
			PaymentDate: payment.PaymentDate.UTC(),
			CreatedAt:   payment.CreatedAt.UTC(),
		})
	}
	return orderDocument{
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		OrderDate:       order.OrderDate.UTC(),
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		TotalAmount:     order.TotalAmount.StringFixed(2),
		AmountPaid:      order.AmountPaid.StringFixed(2),
		DeliveryAddress: order.DeliveryAddress,
		Lines:           lines,
		ProductIDs:      productIDs,
		Payments:        payments,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func decodeOrderDocument(id string, doc orderDocument) (domain.Order, error) {
	totalAmount, err := parseAmount(doc.TotalAmount, "totalAmount")
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
	}
	amountPaid, err := parseAmount(doc.AmountPaid, "amountPaid")
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, err)
	}

	lines := make([]domain.LineItem, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		unitPrice, err := parseAmount(line.UnitPrice, "unitPrice")
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s line %s: %w", id, line.ID, err)
		}
		lineTotal, err := parseAmount(line.LineTotal, "lineTotal")
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s line %s: %w", id, line.ID, err)
		}
		lines = append(lines, domain.LineItem{
			ID:                line.ID,
			ProductID:         line.ProductID,
			Quantity:          line.Quantity,
			UnitPrice:         unitPrice,
			LineTotal:         lineTotal,
			FulfillmentStatus: domain.FulfillmentStatus(line.FulfillmentStatus),
			FulfilledQuantity: line.FulfilledQuantity,
		})
	}

	payments := make([]domain.Payment, 0, len(doc.Payments))
	for _, payment := range doc.Payments {
		amount, err := parseAmount(payment.Amount, "amount")
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s payment %s: %w", id, payment.ID, err)
		}
		payments = append(payments, domain.Payment{
			ID:          payment.ID,
			OrderID:     id,
			Amount:      amount,
			Method:      payment.Method,
			Reference:   payment.Reference,
			PaymentDate: payment.PaymentDate,
			CreatedAt:   payment.CreatedAt,
		})
	}

	return domain.Order{
		ID:              id,
		OrderNumber:     doc.OrderNumber,
		CustomerID:      doc.CustomerID,
		OrderDate:       doc.OrderDate,
		Status:          domain.OrderStatus(doc.Status),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		TotalAmount:     totalAmount,
		AmountPaid:      amountPaid,
		DeliveryAddress: doc.DeliveryAddress,
		Lines:           lines,
		Payments:        payments,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

func parseAmount(value string, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode %s %q: %w", field, value, err)
	}
	return amount, nil
}
