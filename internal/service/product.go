package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/codegen"
	"github.com/flicky/go-checkout-api/internal/dto"
	"github.com/flicky/go-checkout-api/internal/model"
	"github.com/flicky/go-checkout-api/internal/repository"
)

const productCacheTTL = 60 * time.Second

func productCacheKey(code string) string { return "product:" + code }

// ProductCache drops cached product views after their stock or price changed.
type ProductCache interface {
	Invalidate(ctx context.Context, codes ...string)
}

type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	redisClient  *redis.Client
	codeGen      codegen.Generator
	codeAttempts int
	log          *zap.Logger
}

func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	redisClient *redis.Client,
	codeAttempts int,
	log *zap.Logger,
) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		redisClient:  redisClient,
		codeAttempts: codeAttempts,
		log:          log,
	}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	size := model.Size(req.Size)
	if !size.Valid() {
		return nil, ErrInvalidSize
	}
	if req.Price.IsNegative() {
		return nil, newError(ErrValidation, "Price must not be negative")
	}
	if req.StockQuantity < 0 {
		return nil, newError(ErrValidation, "Stock quantity must not be negative")
	}

	product := &model.Product{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Size:          size,
		Color:         req.Color,
		StockQuantity: req.StockQuantity,
		IsAvailable:   true,
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}

	err := codegen.Retry(s.codeGen, s.codeAttempts, func(code string) error {
		product.UniqueCode = code
		return s.productRepo.Create(ctx, product)
	})
	if errors.Is(err, codegen.ErrExhausted) {
		return nil, ErrCodeExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.log.Info("product created", zap.String("product_code", product.UniqueCode), zap.String("name", product.Name))
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByCode(ctx context.Context, code string) (*dto.ProductResponse, error) {
	cacheKey := productCacheKey(code)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn("product cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	product, err := s.productRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.redisClient.Set(ctx, cacheKey, data, productCacheTTL).Err(); err != nil {
				s.log.Warn("product cache write failed", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}

	return &resp, nil
}

func (s *ProductService) List(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}
	return items, nil
}

func (s *ProductService) Update(ctx context.Context, code string, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, newError(ErrValidation, "Price must not be negative")
		}
		product.Price = *req.Price
	}
	if req.Size != nil {
		size := model.Size(*req.Size)
		if !size.Valid() {
			return nil, ErrInvalidSize
		}
		product.Size = size
	}
	if req.Color != nil {
		product.Color = *req.Color
	}
	if req.StockQuantity != nil && *req.StockQuantity < 0 {
		return nil, newError(ErrValidation, "Stock quantity must not be negative")
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}

	if err := s.productRepo.Update(ctx, product, req.StockQuantity); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.Invalidate(ctx, product.UniqueCode)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) ListCategories(ctx context.Context) ([]dto.CategoryResponse, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	resp := make([]dto.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, dto.CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	return resp, nil
}

func (s *ProductService) CreateCategory(ctx context.Context, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	category := &model.Category{Name: req.Name, Description: req.Description}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryExists) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &dto.CategoryResponse{ID: category.ID, Name: category.Name, Description: category.Description}, nil
}

// Invalidate is best effort: a failed delete only leaves a view that expires
// with productCacheTTL.
func (s *ProductService) Invalidate(ctx context.Context, codes ...string) {
	if s.redisClient == nil || len(codes) == 0 {
		return
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = productCacheKey(code)
	}
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn("product cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Size:          p.Size,
		Color:         p.Color,
		StockQuantity: p.StockQuantity,
		IsAvailable:   p.IsAvailable,
		UniqueCode:    p.UniqueCode,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
