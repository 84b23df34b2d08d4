package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-api/internal/gateway"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

// memStore backs every repository with maps. WithinTx serializes
// transactions and restores a snapshot when fn fails, which is enough to
// observe all-or-nothing behavior and lock ordering in unit tests.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users      map[uuid.UUID]model.User
	categories map[uuid.UUID]model.Category
	products   map[uuid.UUID]model.Product
	carts      map[uuid.UUID]model.Cart
	cartItems  map[uuid.UUID]model.CartItem
	orders     map[uuid.UUID]model.Order
	orderItems map[uuid.UUID]model.OrderItem
	payments   map[uuid.UUID]model.Payment

	// rejectDecrement makes DecrementStock report a failed guard for a product.
	rejectDecrement map[uuid.UUID]bool
	clock           time.Time
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		users:           map[uuid.UUID]model.User{},
		categories:      map[uuid.UUID]model.Category{},
		products:        map[uuid.UUID]model.Product{},
		carts:           map[uuid.UUID]model.Cart{},
		cartItems:       map[uuid.UUID]model.CartItem{},
		orders:          map[uuid.UUID]model.Order{},
		orderItems:      map[uuid.UUID]model.OrderItem{},
		payments:        map[uuid.UUID]model.Payment{},
		rejectDecrement: map[uuid.UUID]bool{},
		clock:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type memSnapshot struct {
	users      map[uuid.UUID]model.User
	categories map[uuid.UUID]model.Category
	products   map[uuid.UUID]model.Product
	carts      map[uuid.UUID]model.Cart
	cartItems  map[uuid.UUID]model.CartItem
	orders     map[uuid.UUID]model.Order
	orderItems map[uuid.UUID]model.OrderItem
	payments   map[uuid.UUID]model.Payment
}

func copyMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		users: copyMap(s.users), categories: copyMap(s.categories), products: copyMap(s.products),
		carts: copyMap(s.carts), cartItems: copyMap(s.cartItems), orders: copyMap(s.orders),
		orderItems: copyMap(s.orderItems), payments: copyMap(s.payments),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.categories, s.products = snap.users, snap.categories, snap.products
	s.carts, s.cartItems, s.orders = snap.carts, snap.cartItems, snap.orders
	s.orderItems, s.payments = snap.orderItems, snap.payments
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- seeding and inspection helpers ---

func (s *memStore) addProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Size == "" {
		p.Size = model.SizeMedium
	}
	s.products[p.ID] = p
	return p
}

func (s *memStore) product(id uuid.UUID) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memStore) setPrice(id uuid.UUID, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = price
	s.products[id] = p
}

func (s *memStore) itemsInCart(cartID uuid.UUID) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CartItem
	for _, it := range s.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) orderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orderItems)
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *memStore) order(id uuid.UUID) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) setOrderStatus(id uuid.UUID, status model.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.Status = status
	s.orders[id] = o
}

func (s *memStore) payment(id uuid.UUID) model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id]
}

// --- users ---

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// --- categories ---

type memCategoryRepo struct{ s *memStore }

func (r memCategoryRepo) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.categories {
		if existing.Name == c.Name {
			return repository.ErrCategoryExists
		}
	}
	c.ID = uuid.New()
	r.s.categories[c.ID] = *c
	return nil
}

func (r memCategoryRepo) List(_ context.Context) ([]model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- products ---

type memProductRepo struct{ s *memStore }

func (r memProductRepo) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.products {
		if existing.UniqueCode == p.UniqueCode {
			return repository.ErrDuplicateCode
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.products[p.ID] = *p
	return nil
}

func (r memProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memProductRepo) GetByCode(_ context.Context, code string) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.UniqueCode == code {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memProductRepo) List(_ context.Context) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memProductRepo) Update(_ context.Context, p *model.Product, stock *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.products[p.ID]
	if !ok {
		return errors.New("update product: no rows")
	}
	p.StockQuantity = current.StockQuantity
	if stock != nil {
		p.StockQuantity = *stock
	}
	p.UpdatedAt = r.s.now()
	r.s.products[p.ID] = *p
	return nil
}

func (r memProductRepo) DecrementStock(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || r.s.rejectDecrement[id] || p.StockQuantity < quantity {
		return false, nil
	}
	p.StockQuantity -= quantity
	r.s.products[id] = p
	return true, nil
}

// --- carts ---

type memCartRepo struct{ s *memStore }

func (r memCartRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.carts {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, nil
}

// LockByUserID needs no row lock here: WithinTx already runs one
// transaction at a time.
func (r memCartRepo) LockByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.GetByUserID(ctx, userID)
}

func (r memCartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, number string) (*model.Cart, error) {
	if c, _ := r.GetByUserID(ctx, userID); c != nil {
		return c, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.carts {
		if c.CartNumber == number {
			return nil, repository.ErrDuplicateCode
		}
	}
	c := model.Cart{ID: uuid.New(), UserID: userID, CartNumber: number, CreatedAt: r.s.now()}
	c.UpdatedAt = c.CreatedAt
	r.s.carts[c.ID] = c
	return &c, nil
}

func (r memCartRepo) ListItems(_ context.Context, cartID uuid.UUID, _ bool) ([]model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CartItem
	for _, it := range r.s.cartItems {
		if it.CartID != cartID {
			continue
		}
		p := r.s.products[it.ProductID]
		it.Product = &p
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r memCartRepo) UpsertItem(_ context.Context, item *model.CartItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.cartItems {
		if it.CartID == item.CartID && it.ProductID == item.ProductID && it.Size == item.Size && it.Color == item.Color {
			it.Quantity += item.Quantity
			it.UpdatedAt = r.s.now()
			r.s.cartItems[id] = it
			item.ID, item.Quantity, item.CreatedAt, item.UpdatedAt = it.ID, it.Quantity, it.CreatedAt, it.UpdatedAt
			return nil
		}
	}
	item.ID = uuid.New()
	item.CreatedAt = r.s.now()
	item.UpdatedAt = item.CreatedAt
	stored := *item
	stored.Product = nil
	r.s.cartItems[item.ID] = stored
	return nil
}

func (r memCartRepo) CountItems(_ context.Context, cartID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, it := range r.s.cartItems {
		if it.CartID == cartID {
			n++
		}
	}
	return n, nil
}

func (r memCartRepo) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return false, nil
	}
	delete(r.s.cartItems, itemID)
	return true, nil
}

func (r memCartRepo) Clear(_ context.Context, cartID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.cartItems {
		if it.CartID == cartID {
			delete(r.s.cartItems, id)
		}
	}
	return nil
}

// --- orders ---

type memOrderRepo struct{ s *memStore }

func (r memOrderRepo) Create(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return repository.ErrDuplicateCode
		}
	}
	o.ID = uuid.New()
	o.CreatedAt = r.s.now()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	stored.Items = nil
	r.s.orders[o.ID] = stored
	return nil
}

func (r memOrderRepo) CreateItems(_ context.Context, items []model.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range items {
		items[i].ID = uuid.New()
		r.s.orderItems[items[i].ID] = items[i]
	}
	return nil
}

func (r memOrderRepo) GetForUser(_ context.Context, id, userID uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.UserID != userID {
		return nil, nil
	}
	for _, it := range r.s.orderItems {
		if it.OrderID == id {
			o.Items = append(o.Items, it)
		}
	}
	return &o, nil
}

func (r memOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memOrderRepo) MarkPaid(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status == model.OrderStatusCancelled {
		return nil, nil
	}
	o.PaymentStatus = model.PaymentStatusPaid
	if o.Status == model.OrderStatusPending {
		o.Status = model.OrderStatusProcessing
	}
	o.UpdatedAt = r.s.now()
	r.s.orders[id] = o
	return &o, nil
}

// --- payments ---

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(_ context.Context, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.s.now()
	r.s.payments[p.ID] = *p
	return nil
}

func (r memPaymentRepo) GetForUser(_ context.Context, id, userID uuid.UUID) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || r.s.orders[p.OrderID].UserID != userID {
		return nil, nil
	}
	return &p, nil
}

func (r memPaymentRepo) MarkCompleted(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != model.PaymentRecordPending {
		return false, nil
	}
	p.Status = model.PaymentRecordCompleted
	r.s.payments[id] = p
	return true, nil
}

// --- collaborators ---

type fakeGateway struct {
	mu          sync.Mutex
	intents     map[string]*gateway.Intent
	createErr   error
	retrieveErr error
	lastAmount  int64
	lastMeta    map[string]string
	seq         int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*gateway.Intent{}}
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, _ string, metadata map[string]string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := "pi_" + strconv.Itoa(g.seq)
	in := &gateway.Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}
	g.intents[id] = in
	g.lastAmount, g.lastMeta = amount, metadata
	return in, nil
}

func (g *fakeGateway) RetrieveIntent(_ context.Context, id string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	in, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	return &gateway.Intent{ID: in.ID, Status: in.Status}, nil
}

func (g *fakeGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = status
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []model.OrderMessage
	err  error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, msg model.OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type recordingCache struct {
	mu    sync.Mutex
	codes []string
}

func (c *recordingCache) Invalidate(_ context.Context, codes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, codes...)
}

// sequence returns a generator yielding codes in order, then repeating the last.
func sequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}
