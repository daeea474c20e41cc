package service

import (
	"context"
	"errors"
	"time"

	"github.com/sigvend/sigvend-server/dal/dao"
	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/utils"

	"gorm.io/gorm"
)

// ContactDetails is a contact row with the address decrypted. Address is
// empty when decryption of that record failed.
type ContactDetails struct {
	ID         uint64
	Address    string
	Alias      string
	Trusted    bool
	LastSeenAt *time.Time
}

// MessageDetails is a message-log row with the body decrypted. Body is
// empty when decryption of that record failed.
type MessageDetails struct {
	ID        uint64
	ContactID uint64
	Direction string
	Body      string
	Timestamp int64
	Delivered bool
}

type MessageService interface {
	UpsertContact(ctx context.Context, tx *gorm.DB, masterPassword string, address string) (*do.ContactInfo, bool, error)
	GetContact(ctx context.Context, tx *gorm.DB, masterPassword string, id uint64) (*ContactDetails, error)
	GetContacts(ctx context.Context, tx *gorm.DB, masterPassword string, page int, num int) ([]*ContactDetails, error)
	SetContactTrusted(ctx context.Context, tx *gorm.DB, id uint64, trusted bool) error
	RecordIncoming(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, body string, timestamp int64) (*do.MessageInfo, error)
	RecordOutgoing(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, body string, delivered bool) (*do.MessageInfo, error)
	GetConversation(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, page int, num int) ([]*MessageDetails, error)
}

type MessageServiceImpl struct {
	contactInfoDAO dao.ContactInfoDAO
	messageInfoDAO dao.MessageInfoDAO
}

var messageService MessageService = &MessageServiceImpl{
	contactInfoDAO: dao.GetContactInfoDAOImpl(),
	messageInfoDAO: dao.GetMessageInfoDAOImpl(),
}

func GetMessageService() MessageService {
	return messageService
}

// UpsertContact finds the contact for a plaintext address via its keyed
// digest, creating the row on first contact. The second return value
// reports whether the contact was newly created.
func (m *MessageServiceImpl) UpsertContact(ctx context.Context, tx *gorm.DB, masterPassword string, address string) (*do.ContactInfo, bool, error) {
	if utils.IsBlank(address) {
		return nil, false, errors.New("blank contact address")
	}

	digest := utils.AddressDigest(masterPassword, address)
	existing, err := m.contactInfoDAO.GetByDigest(ctx, tx, digest)
	if err != nil {
		return nil, false, err
	}
	now := time.Now()
	if existing != nil {
		if err := m.contactInfoDAO.UpdateLastSeen(ctx, tx, existing.ID, now); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	cipher, salt, err := utils.EncryptField(masterPassword, address)
	if err != nil {
		return nil, false, err
	}
	info := do.ContactInfo{
		AddressCipher: cipher,
		AddressSalt:   salt,
		AddressDigest: digest,
		LastSeenAt:    &now,
	}
	created, err := m.contactInfoDAO.Create(ctx, tx, &info)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (m *MessageServiceImpl) GetContact(ctx context.Context, tx *gorm.DB, masterPassword string, id uint64) (*ContactDetails, error) {
	info, err := m.contactInfoDAO.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return m.toContactDetails(masterPassword, info), nil
}

func (m *MessageServiceImpl) GetContacts(ctx context.Context, tx *gorm.DB, masterPassword string, page int, num int) ([]*ContactDetails, error) {
	infos, err := m.contactInfoDAO.Get(ctx, tx, page, num, false)
	if err != nil {
		return nil, err
	}
	res := make([]*ContactDetails, 0, len(infos))
	for _, info := range infos {
		res = append(res, m.toContactDetails(masterPassword, info))
	}
	return res, nil
}

func (m *MessageServiceImpl) SetContactTrusted(ctx context.Context, tx *gorm.DB, id uint64, trusted bool) error {
	return m.contactInfoDAO.SetTrusted(ctx, tx, id, trusted)
}

func (m *MessageServiceImpl) RecordIncoming(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, body string, timestamp int64) (*do.MessageInfo, error) {
	return m.record(ctx, tx, masterPassword, contactID, "in", body, timestamp, true)
}

func (m *MessageServiceImpl) RecordOutgoing(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, body string, delivered bool) (*do.MessageInfo, error) {
	return m.record(ctx, tx, masterPassword, contactID, "out", body, time.Now().UnixMilli(), delivered)
}

func (m *MessageServiceImpl) record(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, direction string, body string, timestamp int64, delivered bool) (*do.MessageInfo, error) {
	cipher, salt, err := utils.EncryptField(masterPassword, body)
	if err != nil {
		return nil, err
	}
	info := do.MessageInfo{
		ContactID:  contactID,
		Direction:  direction,
		BodyCipher: cipher,
		BodySalt:   salt,
		Timestamp:  timestamp,
		Delivered:  delivered,
	}
	return m.messageInfoDAO.Create(ctx, tx, &info)
}

// GetConversation returns the decrypted message history with one contact.
// A record whose body fails to decrypt is returned with an empty body; the
// failure never hides the rest of the conversation.
func (m *MessageServiceImpl) GetConversation(ctx context.Context, tx *gorm.DB, masterPassword string, contactID uint64, page int, num int) ([]*MessageDetails, error) {
	infos, err := m.messageInfoDAO.GetByContactID(ctx, tx, contactID, page, num)
	if err != nil {
		return nil, err
	}
	res := make([]*MessageDetails, 0, len(infos))
	for _, info := range infos {
		details := &MessageDetails{
			ID:        info.ID,
			ContactID: info.ContactID,
			Direction: info.Direction,
			Timestamp: info.Timestamp,
			Delivered: info.Delivered,
		}
		body, err := utils.DecryptField(masterPassword, info.BodyCipher, info.BodySalt)
		if err != nil {
			log.Warnf("Unable to decrypt message %d: %v", info.ID, err)
		} else {
			details.Body = body
		}
		res = append(res, details)
	}
	return res, nil
}

func (m *MessageServiceImpl) toContactDetails(masterPassword string, info *do.ContactInfo) *ContactDetails {
	details := &ContactDetails{
		ID:         info.ID,
		Alias:      info.Alias,
		Trusted:    info.Trusted,
		LastSeenAt: info.LastSeenAt,
	}
	address, err := utils.DecryptField(masterPassword, info.AddressCipher, info.AddressSalt)
	if err != nil {
		log.Warnf("Unable to decrypt address of contact %d: %v", info.ID, err)
	} else {
		details.Address = address
	}
	return details
}
