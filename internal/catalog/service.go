package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/db"
	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/pagination"
)

// Service exposes catalog read paths plus admin product management.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ListResult, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	GetProductBySlug(ctx context.Context, slug string) (*ProductDTO, error)

	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateDetails(ctx context.Context, productID uuid.UUID, input UpdateDetailsInput) (*ProductDTO, error)
	UpdatePricing(ctx context.Context, productID uuid.UUID, priceCents int64) (*ProductDTO, error)
	Restock(ctx context.Context, productID uuid.UUID, input RestockInput) (*ProductDTO, error)
	SetActive(ctx context.Context, productID uuid.UUID, active bool) (*ProductDTO, error)
}

// ListProductsInput carries catalog query parameters.
type ListProductsInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// VariantInput is one sized stock entry on a create or restock payload.
type VariantInput struct {
	Size  enums.ProductSize
	Stock int
	SKU   string
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Description string
	Category    enums.ProductCategory
	PriceCents  int64
	Brand       *string
	Tags        []string
	IsActive    bool
	TotalStock  int
	Variants    []VariantInput
}

// UpdateDetailsInput holds optional descriptive mutations for a product.
type UpdateDetailsInput struct {
	Name        *string
	Description *string
	Brand       *string
	Tags        *[]string
}

// RestockInput sets absolute stock levels. For sized products the variant
// set is replaced wholesale; for unsized products TotalStock applies.
type RestockInput struct {
	TotalStock *int
	Variants   *[]VariantInput
}

type service struct {
	repo     *Repository
	dbClient *db.Client
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ListResult, error) {
	rows, total, err := s.repo.List(ctx, input.Filters, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}

	result := &ListResult{
		Products:   make([]ProductDTO, 0, len(rows)),
		Pagination: pagination.BuildPage(input.Pagination, total),
	}
	for i := range rows {
		result.Products = append(result.Products, *NewProductDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) GetProductByID(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return NewProductDTO(product), nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*ProductDTO, error) {
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return NewProductDTO(product), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        input.Name,
		Slug:        Slugify(input.Name),
		Description: input.Description,
		Category:    input.Category,
		PriceCents:  input.PriceCents,
		Brand:       input.Brand,
		Tags:        pq.StringArray(input.Tags),
		IsActive:    input.IsActive,
	}
	if len(input.Variants) > 0 {
		total := 0
		for _, v := range input.Variants {
			product.Variants = append(product.Variants, models.ProductVariant{
				Size:  v.Size,
				Stock: v.Stock,
				SKU:   v.SKU,
			})
			total += v.Stock
		}
		product.TotalStock = total
	} else {
		product.TotalStock = input.TotalStock
	}

	created, err := s.repo.Create(ctx, product)
	if db.IsUniqueViolation(err) {
		// Slug collision with an existing listing; disambiguate and retry once.
		product.ID = uuid.Nil
		product.Slug = fmt.Sprintf("%s-%s", product.Slug, uuid.NewString()[:8])
		created, err = s.repo.Create(ctx, product)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}

	return s.GetProductByID(ctx, created.ID)
}

func (s *service) UpdateDetails(ctx context.Context, productID uuid.UUID, input UpdateDetailsInput) (*ProductDTO, error) {
	product, err := s.loadForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Brand != nil {
		product.Brand = input.Brand
	}
	if input.Tags != nil {
		product.Tags = pq.StringArray(*input.Tags)
	}

	if _, err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return s.GetProductByID(ctx, productID)
}

func (s *service) UpdatePricing(ctx context.Context, productID uuid.UUID, priceCents int64) (*ProductDTO, error) {
	if priceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be positive")
	}

	product, err := s.loadForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	product.PriceCents = priceCents
	if _, err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return s.GetProductByID(ctx, productID)
}

func (s *service) Restock(ctx context.Context, productID uuid.UUID, input RestockInput) (*ProductDTO, error) {
	product, err := s.loadForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	switch {
	case input.Variants != nil:
		if !product.Sized() && !product.Category.RequiresSizing() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product does not track sized stock")
		}
		variants, total, err := buildVariantRows(productID, *input.Variants)
		if err != nil {
			return nil, err
		}
		if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			if err := txRepo.ReplaceVariants(ctx, productID, variants); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace variants")
			}
			product.TotalStock = total
			if _, err := txRepo.Save(ctx, product); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
			}
			return nil
		}); err != nil {
			return nil, err
		}

	case input.TotalStock != nil:
		if product.Sized() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sized products restock per variant")
		}
		if *input.TotalStock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_stock must not be negative")
		}
		product.TotalStock = *input.TotalStock
		if _, err := s.repo.Save(ctx, product); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock requires total_stock or variants")
	}

	return s.GetProductByID(ctx, productID)
}

func (s *service) SetActive(ctx context.Context, productID uuid.UUID, active bool) (*ProductDTO, error) {
	product, err := s.loadForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	product.IsActive = active
	if _, err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return s.GetProductByID(ctx, productID)
}

func (s *service) loadForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return product, nil
}

func validateCreateInput(input CreateProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown category %q", input.Category))
	}
	if input.PriceCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be positive")
	}
	if input.TotalStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total_stock must not be negative")
	}

	if input.Category.RequiresSizing() && len(input.Variants) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("category %s requires sized variants", input.Category))
	}
	if !input.Category.RequiresSizing() && len(input.Variants) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("category %s does not track sized stock", input.Category))
	}

	_, _, err := buildVariantRows(uuid.Nil, input.Variants)
	return err
}

func buildVariantRows(productID uuid.UUID, inputs []VariantInput) ([]models.ProductVariant, int, error) {
	seen := map[enums.ProductSize]bool{}
	rows := make([]models.ProductVariant, 0, len(inputs))
	total := 0
	for _, v := range inputs {
		if !v.Size.IsValid() {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unknown size %q", v.Size))
		}
		if seen[v.Size] {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("duplicate size %s", v.Size))
		}
		if v.Stock < 0 {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		seen[v.Size] = true
		rows = append(rows, models.ProductVariant{
			ProductID: productID,
			Size:      v.Size,
			Stock:     v.Stock,
			SKU:       v.SKU,
		})
		total += v.Stock
	}
	return rows, total, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a product name into its URL slug.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
