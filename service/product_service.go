package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sigvend/sigvend-server/constdef"
	"github.com/sigvend/sigvend-server/dal/dao"
	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/utils"

	"gorm.io/gorm"
)

// ProductDetails is a product row with its encrypted fields decrypted for
// the caller. ImagePath is empty when no image is set or when decryption
// of that one record failed.
type ProductDetails struct {
	ID          uint64
	Name        string
	Description string
	FiatPrice   float64
	Currency    string
	Stock       int
	Active      bool
	ImagePath   string
}

type ProductService interface {
	CreateProduct(ctx context.Context, tx *gorm.DB, masterPassword string, name string, description string, price float64, currency string, stock int, imagePath string) (*do.ProductInfo, error)
	GetProduct(ctx context.Context, tx *gorm.DB, masterPassword string, id uint64) (*ProductDetails, error)
	GetActiveProducts(ctx context.Context, tx *gorm.DB, masterPassword string) ([]*ProductDetails, error)
	GetProducts(ctx context.Context, tx *gorm.DB, masterPassword string, page int, num int) ([]*ProductDetails, error)
	UpdateProduct(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error
	DeactivateProduct(ctx context.Context, tx *gorm.DB, id uint64) error
}

type ProductServiceImpl struct {
	productInfoDAO dao.ProductInfoDAO
}

var productService ProductService = &ProductServiceImpl{
	productInfoDAO: dao.GetProductInfoDAOImpl(),
}

func GetProductService() ProductService {
	return productService
}

func (p *ProductServiceImpl) CreateProduct(ctx context.Context, tx *gorm.DB, masterPassword string, name string, description string, price float64, currency string, stock int, imagePath string) (*do.ProductInfo, error) {
	name = strings.TrimSpace(name)
	if utils.IsBlank(name) || len(name) > constdef.MaxProductNameLength {
		return nil, errors.New("invalid product name: blank or exceed max length")
	}
	if price < 0 {
		return nil, errors.New("invalid product price: negative")
	}
	if stock < 0 {
		return nil, errors.New("invalid product stock: negative")
	}

	info := do.ProductInfo{
		Name:        name,
		Description: description,
		FiatPrice:   price,
		Currency:    currency,
		Stock:       stock,
		Active:      true,
	}
	if imagePath != "" {
		cipher, salt, err := utils.EncryptField(masterPassword, imagePath)
		if err != nil {
			return nil, err
		}
		info.ImagePathCipher = cipher
		info.ImagePathSalt = salt
	}
	return p.productInfoDAO.Create(ctx, tx, &info)
}

func (p *ProductServiceImpl) GetProduct(ctx context.Context, tx *gorm.DB, masterPassword string, id uint64) (*ProductDetails, error) {
	info, err := p.productInfoDAO.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return p.toDetails(masterPassword, info), nil
}

func (p *ProductServiceImpl) GetActiveProducts(ctx context.Context, tx *gorm.DB, masterPassword string) ([]*ProductDetails, error) {
	infos, err := p.productInfoDAO.GetActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	res := make([]*ProductDetails, 0, len(infos))
	for _, info := range infos {
		res = append(res, p.toDetails(masterPassword, info))
	}
	return res, nil
}

func (p *ProductServiceImpl) GetProducts(ctx context.Context, tx *gorm.DB, masterPassword string, page int, num int) ([]*ProductDetails, error) {
	infos, err := p.productInfoDAO.Get(ctx, tx, page, num, false)
	if err != nil {
		return nil, err
	}
	res := make([]*ProductDetails, 0, len(infos))
	for _, info := range infos {
		res = append(res, p.toDetails(masterPassword, info))
	}
	return res, nil
}

func (p *ProductServiceImpl) UpdateProduct(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error {
	return p.productInfoDAO.UpdateFields(ctx, tx, id, fields)
}

func (p *ProductServiceImpl) DeactivateProduct(ctx context.Context, tx *gorm.DB, id uint64) error {
	return p.productInfoDAO.SetActive(ctx, tx, id, false)
}

// toDetails decrypts the encrypted columns of one product. A decryption
// failure nulls the affected field and never aborts the surrounding read.
func (p *ProductServiceImpl) toDetails(masterPassword string, info *do.ProductInfo) *ProductDetails {
	details := &ProductDetails{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		FiatPrice:   info.FiatPrice,
		Currency:    info.Currency,
		Stock:       info.Stock,
		Active:      info.Active,
	}
	if info.ImagePathCipher != "" {
		imagePath, err := utils.DecryptField(masterPassword, info.ImagePathCipher, info.ImagePathSalt)
		if err != nil {
			log.Warnf("Unable to decrypt image path of product %d: %v", info.ID, err)
		} else {
			details.ImagePath = imagePath
		}
	}
	return details
}
