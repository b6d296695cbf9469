package deferred

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/internal/catalog"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

type itemLoader interface {
	ListItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLineItem, error)
}

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type itemPricer interface {
	Quote(product *models.Product, quantity int, customerGroupID string) (catalog.Quote, error)
}

// ServiceParams wires the deferred session service.
type ServiceParams struct {
	Store    Store
	Items    itemLoader
	Products productLoader
	Pricer   itemPricer
	Logger   *logger.Logger
}

// Service manages staged order edits. A session starts from the persisted
// items of an order and is either flushed by the save path or discarded.
type Service struct {
	store    Store
	items    itemLoader
	products productLoader
	pricer   itemPricer
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, errors.New("deferred store required")
	}
	if params.Items == nil {
		return nil, errors.New("item loader required")
	}
	if params.Products == nil {
		return nil, errors.New("product loader required")
	}
	if params.Pricer == nil {
		return nil, errors.New("item pricer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		store:    params.Store,
		items:    params.Items,
		products: params.Products,
		pricer:   params.Pricer,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Begin opens a new session seeded with the order's persisted items.
func (s *Service) Begin(ctx context.Context, orderID uuid.UUID) (*Session, error) {
	persisted, err := s.items.ListItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	session := &Session{
		Key:       uuid.NewString(),
		OrderID:   orderID,
		Items:     cloneItems(persisted),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save deferred session")
	}
	s.logg.Info(s.logg.WithSessionKey(s.logg.WithOrderID(ctx, orderID.String()), session.Key), "deferred.session_started")
	return session, nil
}

// Load returns the session for key, checking it belongs to orderID.
func (s *Service) Load(ctx context.Context, key string, orderID uuid.UUID) (*Session, error) {
	session, err := s.store.Load(ctx, key)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "edit session not found or expired")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deferred session")
	}
	if session.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "edit session belongs to another order")
	}
	return session, nil
}

// SessionItems returns a private copy of the staged items.
func (s *Service) SessionItems(ctx context.Context, key string, orderID uuid.UUID) ([]*models.OrderLineItem, error) {
	session, err := s.Load(ctx, key, orderID)
	if err != nil {
		return nil, err
	}
	return cloneItems(session.Items), nil
}

// AddProduct stages a new line priced through the customer catalog.
func (s *Service) AddProduct(ctx context.Context, key string, orderID, productID uuid.UUID, quantity int, customerGroupID string) (*models.OrderLineItem, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	session, err := s.Load(ctx, key, orderID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindProduct(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s is not available", product.SKU)
	}

	quote, err := s.pricer.Quote(product, quantity, customerGroupID)
	if err != nil {
		return nil, err
	}

	item := &models.OrderLineItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: &product.ID,
		Position:  nextPosition(session.Items),
		SKU:       product.SKU,
		Name:      product.Name,
		Quantity:  quantity,
		UnitPrice: quote.UnitPrice,
		Discount:  decimal.Zero,
		Cost:      product.Cost,
	}
	session.Items = append(session.Items, item)
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

// UpdateQuantity changes the quantity of a staged item and reprices it when
// it came from the catalog, so volume tiers follow the new quantity.
func (s *Service) UpdateQuantity(ctx context.Context, key string, orderID, itemID uuid.UUID, quantity int, customerGroupID string) (*models.OrderLineItem, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	session, err := s.Load(ctx, key, orderID)
	if err != nil {
		return nil, err
	}
	item := findItem(session.Items, itemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
	}

	item.Quantity = quantity
	if item.ProductID != nil {
		product, err := s.products.FindProduct(ctx, *item.ProductID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// keep the stored price when the product has been removed from the catalog
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		default:
			quote, err := s.pricer.Quote(product, quantity, customerGroupID)
			if err != nil {
				return nil, err
			}
			item.UnitPrice = quote.UnitPrice
			item.SetDiscount(item.Discount)
		}
	}

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

// RemoveItem drops a staged item. Bundle children go with their parent.
func (s *Service) RemoveItem(ctx context.Context, key string, orderID, itemID uuid.UUID) error {
	session, err := s.Load(ctx, key, orderID)
	if err != nil {
		return err
	}
	if findItem(session.Items, itemID) == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
	}

	kept := session.Items[:0]
	for _, item := range session.Items {
		if item.ID == itemID {
			continue
		}
		if item.BundleParentID != nil && *item.BundleParentID == itemID {
			continue
		}
		kept = append(kept, item)
	}
	session.Items = kept
	return s.save(ctx, session)
}

// Discard drops the session. Unknown keys are not an error.
func (s *Service) Discard(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.store.Discard(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard deferred session")
	}
	s.logg.Info(s.logg.WithSessionKey(ctx, key), "deferred.session_discarded")
	return nil
}

func (s *Service) save(ctx context.Context, session *Session) error {
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save deferred session")
	}
	return nil
}

func findItem(items []*models.OrderLineItem, id uuid.UUID) *models.OrderLineItem {
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func nextPosition(items []*models.OrderLineItem) int {
	next := 0
	for _, item := range items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next
}
