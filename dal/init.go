package dal

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sigvend/sigvend-server/dal/do"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var GlobalDBClient *gorm.DB

func GetDB(ctx context.Context) *gorm.DB {
	return GlobalDBClient.WithContext(ctx)
}

type DBConfig struct {
	// Path is the SQLite database file. The parent directory is created if
	// missing.
	Path string
}

func InitDB(cfg *DBConfig, autoCreate bool) error {
	log.Infof("Opening database %v...", cfg.Path)

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	if err != nil {
		return err
	}

	// The store is a single file owned by one process; serialize writers
	// at the connection level and let readers queue behind a busy timeout.
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return err
	}
	if err := db.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
		return err
	}

	if autoCreate {
		if err := createTables(db); err != nil {
			return err
		}
	}

	GlobalDBClient = db

	log.Infof("Successfully opened database")

	return nil
}

func createTables(db *gorm.DB) error {
	log.Infof("Creating table seller_infos...")
	err := db.AutoMigrate(&do.SellerInfo{})
	if err != nil {
		log.Infof("Fail to create table seller_infos")
		return err
	}

	log.Infof("Creating table product_infos...")
	err = db.AutoMigrate(&do.ProductInfo{})
	if err != nil {
		log.Infof("Fail to create table product_infos")
		return err
	}

	log.Infof("Creating table order_infos...")
	err = db.AutoMigrate(&do.OrderInfo{})
	if err != nil {
		log.Infof("Fail to create table order_infos")
		return err
	}

	log.Infof("Creating table order_tx_infos...")
	err = db.AutoMigrate(&do.OrderTxInfo{})
	if err != nil {
		log.Infof("Fail to create table order_tx_infos")
		return err
	}

	log.Infof("Creating table contact_infos...")
	err = db.AutoMigrate(&do.ContactInfo{})
	if err != nil {
		log.Infof("Fail to create table contact_infos")
		return err
	}

	log.Infof("Creating table message_infos...")
	err = db.AutoMigrate(&do.MessageInfo{})
	if err != nil {
		log.Infof("Fail to create table message_infos")
		return err
	}

	log.Infof("Creating table node_infos...")
	err = db.AutoMigrate(&do.NodeInfo{})
	if err != nil {
		log.Infof("Fail to create table node_infos")
		return err
	}
	return nil
}
