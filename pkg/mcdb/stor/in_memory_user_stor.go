package stor

import (
	"sync"

	"github.com/hashicorp/go-uuid"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/pkg/errors"
)

type InMemoryUserStor struct {
	mu     sync.Mutex
	users  []mcmodel.User
	lastID int
}

func NewInMemoryUserStor(users []mcmodel.User) *InMemoryUserStor {
	s := &InMemoryUserStor{users: users}
	for _, u := range users {
		if u.ID > s.lastID {
			s.lastID = u.ID
		}
	}

	return s
}

func (s *InMemoryUserStor) CreateUser(user *mcmodel.User) (*mcmodel.User, error) {
	var err error

	if user.UUID, err = uuid.GenerateUUID(); err != nil {
		return nil, err
	}

	if user.ApiToken == "" {
		if user.ApiToken, err = NewUploadID(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	user.ID = s.lastID
	s.users = append(s.users, *user)

	return user, nil
}

func (s *InMemoryUserStor) GetUserByID(id int) (*mcmodel.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			return &u, nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "user %d", id)
}

func (s *InMemoryUserStor) GetUserByAPIToken(apitoken string) (*mcmodel.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ApiToken == apitoken {
			return &u, nil
		}
	}

	return nil, errors.Wrap(ErrNotFound, "user for api token")
}
