package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sigvend/sigvend-server/constdef"
	"github.com/sigvend/sigvend-server/dal/dao"
	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/utils"

	"gorm.io/gorm"
)

type SellerService interface {
	SellerExists(ctx context.Context, tx *gorm.DB) (bool, error)
	RegisterSeller(ctx context.Context, tx *gorm.DB, pin string, masterPassword string, identity string, walletFile string, currency string, commissionAddr string) (*do.SellerInfo, error)
	VerifyPIN(ctx context.Context, tx *gorm.DB, pin string) (bool, error)
	GetIdentity(ctx context.Context, tx *gorm.DB, masterPassword string) (string, error)
	GetCommissionAddress(ctx context.Context, tx *gorm.DB, masterPassword string) (string, error)
	GetWalletFile(ctx context.Context, tx *gorm.DB) (string, error)
	ChangePIN(ctx context.Context, tx *gorm.DB, oldPIN string, newPIN string) error
}

type SellerServiceImpl struct {
	sellerInfoDAO dao.SellerInfoDAO
}

var sellerService SellerService = &SellerServiceImpl{
	sellerInfoDAO: dao.GetSellerInfoDAOImpl(),
}

func GetSellerService() SellerService {
	return sellerService
}

func (s *SellerServiceImpl) SellerExists(ctx context.Context, tx *gorm.DB) (bool, error) {
	info, err := s.sellerInfoDAO.Get(ctx, tx)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

func (s *SellerServiceImpl) RegisterSeller(ctx context.Context, tx *gorm.DB, pin string, masterPassword string, identity string, walletFile string, currency string, commissionAddr string) (*do.SellerInfo, error) {
	pin = strings.TrimSpace(pin)
	if len(pin) < constdef.MinPINLength || len(pin) > constdef.MaxPINLength {
		return nil, errors.New("invalid PIN: length out of range")
	}

	exists, err := s.SellerExists(ctx, tx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.New("seller account already registered")
	}

	pinHash, pinSalt, err := utils.HashPIN(pin)
	if err != nil {
		return nil, err
	}

	info := do.SellerInfo{
		PINHash:    pinHash,
		PINSalt:    pinSalt,
		WalletFile: walletFile,
		Currency:   currency,
	}
	if identity != "" {
		cipher, salt, err := utils.EncryptField(masterPassword, identity)
		if err != nil {
			return nil, err
		}
		info.IdentityCipher = cipher
		info.IdentitySalt = salt
	}
	if commissionAddr != "" {
		cipher, salt, err := utils.EncryptField(masterPassword, commissionAddr)
		if err != nil {
			return nil, err
		}
		info.CommissionAddrCipher = cipher
		info.CommissionAddrSalt = salt
	}

	return s.sellerInfoDAO.Create(ctx, tx, &info)
}

func (s *SellerServiceImpl) VerifyPIN(ctx context.Context, tx *gorm.DB, pin string) (bool, error) {
	info, err := s.sellerInfoDAO.Get(ctx, tx)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, errcode.ErrSellerNotInitialized
	}
	return utils.VerifyPIN(strings.TrimSpace(pin), info.PINHash, info.PINSalt), nil
}

func (s *SellerServiceImpl) GetIdentity(ctx context.Context, tx *gorm.DB, masterPassword string) (string, error) {
	info, err := s.sellerInfoDAO.Get(ctx, tx)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", errcode.ErrSellerNotInitialized
	}
	if info.IdentityCipher == "" {
		return "", nil
	}
	return utils.DecryptField(masterPassword, info.IdentityCipher, info.IdentitySalt)
}

func (s *SellerServiceImpl) GetCommissionAddress(ctx context.Context, tx *gorm.DB, masterPassword string) (string, error) {
	info, err := s.sellerInfoDAO.Get(ctx, tx)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", errcode.ErrSellerNotInitialized
	}
	if info.CommissionAddrCipher == "" {
		return "", nil
	}
	return utils.DecryptField(masterPassword, info.CommissionAddrCipher, info.CommissionAddrSalt)
}

func (s *SellerServiceImpl) GetWalletFile(ctx context.Context, tx *gorm.DB) (string, error) {
	info, err := s.sellerInfoDAO.Get(ctx, tx)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", errcode.ErrSellerNotInitialized
	}
	return info.WalletFile, nil
}

func (s *SellerServiceImpl) ChangePIN(ctx context.Context, tx *gorm.DB, oldPIN string, newPIN string) error {
	info, err := s.sellerInfoDAO.Get(ctx, tx)
	if err != nil {
		return err
	}
	if info == nil {
		return errcode.ErrSellerNotInitialized
	}
	if !utils.VerifyPIN(strings.TrimSpace(oldPIN), info.PINHash, info.PINSalt) {
		return errors.New("old PIN does not match")
	}

	newPIN = strings.TrimSpace(newPIN)
	if len(newPIN) < constdef.MinPINLength || len(newPIN) > constdef.MaxPINLength {
		return errors.New("invalid PIN: length out of range")
	}
	hash, salt, err := utils.HashPIN(newPIN)
	if err != nil {
		return err
	}
	return s.sellerInfoDAO.UpdateFields(ctx, tx, info.ID, map[string]interface{}{
		"pin_hash": hash,
		"pin_salt": salt,
	})
}
