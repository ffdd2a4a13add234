package stor

import (
	"github.com/hashicorp/go-uuid"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type GormUserStor struct {
	db *gorm.DB
}

func NewGormUserStor(db *gorm.DB) *GormUserStor {
	return &GormUserStor{db: db}
}

// CreateUser creates a new user. The UUID is always generated, an API token
// only when the caller didn't supply one.
func (s *GormUserStor) CreateUser(user *mcmodel.User) (*mcmodel.User, error) {
	var err error

	if user.UUID, err = uuid.GenerateUUID(); err != nil {
		return nil, err
	}

	if user.ApiToken == "" {
		if user.ApiToken, err = NewUploadID(); err != nil {
			return nil, err
		}
	}

	err = WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *GormUserStor) GetUserByID(id int) (*mcmodel.User, error) {
	var user mcmodel.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "user %d", id)
		}
		return nil, err
	}

	return &user, nil
}

func (s *GormUserStor) GetUserByAPIToken(apitoken string) (*mcmodel.User, error) {
	var user mcmodel.User
	if err := s.db.Where("api_token = ?", apitoken).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.Wrap(ErrNotFound, "user for api token")
		}
		return nil, err
	}

	return &user, nil
}
