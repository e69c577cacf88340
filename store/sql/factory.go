package sqlstore

import (
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every bun backed store over one database handle.
type RepositoryFactory struct {
	db *bun.DB

	contactStore       *ContactStore
	tagStore           *TagStore
	noteStore          *NoteStore
	activityStore      *ActivityStore
	credentialStore    *CredentialStore
	rateWindowStore    *RateWindowStore
	responseCacheStore *ResponseCacheStore
	deliveryLogStore   *DeliveryLogStore
}

// NewRepositoryFactory accepts a *bun.DB or any client exposing DB() *bun.DB,
// such as a go-persistence-bun client.
func NewRepositoryFactory(persistenceClient any) (*RepositoryFactory, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	factory := &RepositoryFactory{db: db}
	if err := factory.initStores(); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ContactStore() *ContactStore {
	if f == nil {
		return nil
	}
	return f.contactStore
}

func (f *RepositoryFactory) TagStore() *TagStore {
	if f == nil {
		return nil
	}
	return f.tagStore
}

// CachedTagStore wraps the tag store with a go-repository-cache read cache.
func (f *RepositoryFactory) CachedTagStore(cacheService repositorycache.CacheService) (*CachedTagStore, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	return NewCachedTagStore(f.tagStore, cacheService)
}

func (f *RepositoryFactory) NoteStore() *NoteStore {
	if f == nil {
		return nil
	}
	return f.noteStore
}

func (f *RepositoryFactory) ActivityStore() *ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

func (f *RepositoryFactory) CredentialStore() *CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) RateWindowStore() *RateWindowStore {
	if f == nil {
		return nil
	}
	return f.rateWindowStore
}

func (f *RepositoryFactory) ResponseCacheStore() *ResponseCacheStore {
	if f == nil {
		return nil
	}
	return f.responseCacheStore
}

func (f *RepositoryFactory) DeliveryLogStore() *DeliveryLogStore {
	if f == nil {
		return nil
	}
	return f.deliveryLogStore
}

func (f *RepositoryFactory) initStores() error {
	var err error
	if f.contactStore, err = NewContactStore(f.db); err != nil {
		return err
	}
	if f.tagStore, err = NewTagStore(f.db); err != nil {
		return err
	}
	if f.noteStore, err = NewNoteStore(f.db); err != nil {
		return err
	}
	if f.activityStore, err = NewActivityStore(f.db); err != nil {
		return err
	}
	if f.credentialStore, err = NewCredentialStore(f.db); err != nil {
		return err
	}
	if f.rateWindowStore, err = NewRateWindowStore(f.db); err != nil {
		return err
	}
	if f.responseCacheStore, err = NewResponseCacheStore(f.db); err != nil {
		return err
	}
	if f.deliveryLogStore, err = NewDeliveryLogStore(f.db); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
