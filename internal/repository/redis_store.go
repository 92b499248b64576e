package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"todoapp/internal/errors"
	"todoapp/internal/model"
)

const (
	redisUsersPrefix  = "users:"
	redisAdminsPrefix = "admins:"
	redisTasksPrefix  = "tasks:"
)

// RedisStore is the key-value deployment: one key per credential record and
// one key per task collection, each holding a JSON document.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// NewRedisStore builds a store on rdb. Every key is namespaced with prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Users() CredentialRepository {
	return &redisCredentials{rdb: s.rdb, prefix: s.prefix + redisUsersPrefix}
}

func (s *RedisStore) Admins() CredentialRepository {
	return &redisCredentials{rdb: s.rdb, prefix: s.prefix + redisAdminsPrefix}
}

func (s *RedisStore) Tasks() TaskRepository {
	return &redisTasks{rdb: s.rdb, prefix: s.prefix + redisTasksPrefix}
}

// DeleteUser removes both keys in one MULTI/EXEC.
func (s *RedisStore) DeleteUser(ctx context.Context, username string) error {
	var userDel *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		userDel = pipe.Del(ctx, s.prefix+redisUsersPrefix+username)
		pipe.Del(ctx, s.prefix+redisTasksPrefix+username)
		return nil
	})
	if err != nil {
		return errors.Storage("delete user", err)
	}
	if userDel.Val() == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.Storage("ping redis", err)
	}
	return nil
}

// Close is a no-op: the redis client is shared with the cache and rate
// limiter and closed by its owner.
func (s *RedisStore) Close() error { return nil }

type redisCredentials struct {
	rdb    *redis.Client
	prefix string
}

func (r *redisCredentials) Create(ctx context.Context, user *model.User) error {
	payload, err := json.Marshal(credentialDoc{Password: user.PasswordHash})
	if err != nil {
		return errors.Storage("encode credential", err)
	}
	created, err := r.rdb.SetNX(ctx, r.prefix+user.Username, payload, 0).Result()
	if err != nil {
		return errors.Storage("create credential", err)
	}
	if !created {
		return errors.ErrUsernameTaken
	}
	return nil
}

func (r *redisCredentials) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	data, err := r.rdb.Get(ctx, r.prefix+username).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Storage("read credential", err)
	}
	var doc credentialDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Storage("decode credential", err)
	}
	return &model.User{Username: username, PasswordHash: doc.Password}, nil
}

func (r *redisCredentials) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	payload, err := json.Marshal(credentialDoc{Password: passwordHash})
	if err != nil {
		return errors.Storage("encode credential", err)
	}
	updated, err := r.rdb.SetXX(ctx, r.prefix+username, payload, 0).Result()
	if err != nil {
		return errors.Storage("update credential", err)
	}
	if !updated {
		return errors.ErrUserNotFound
	}
	return nil
}

func (r *redisCredentials) List(ctx context.Context) ([]model.User, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Storage("scan credentials", err)
	}
	sort.Strings(keys)

	users := make([]model.User, 0, len(keys))
	if len(keys) == 0 {
		return users, nil
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Storage("read credentials", err)
	}
	for i, key := range keys {
		raw, ok := values[i].(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		var doc credentialDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, errors.Storage("decode credential", err)
		}
		users = append(users, model.User{
			Username:     strings.TrimPrefix(key, r.prefix),
			PasswordHash: doc.Password,
		})
	}
	return users, nil
}

type redisTasks struct {
	rdb    *redis.Client
	prefix string
}

func (r *redisTasks) Load(ctx context.Context, username string) ([]model.Task, error) {
	data, err := r.rdb.Get(ctx, r.prefix+username).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return []model.Task{}, nil
	}
	if err != nil {
		return nil, errors.Storage("read tasks", err)
	}
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, errors.Storage("decode tasks", err)
	}
	return normalize(tasks), nil
}

func (r *redisTasks) Save(ctx context.Context, username string, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return errors.Storage("encode tasks", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+username, payload, 0).Err(); err != nil {
		return errors.Storage("write tasks", err)
	}
	return nil
}
