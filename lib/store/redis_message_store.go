package store

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/vmihailenco/msgpack"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
)

// RedisMessageStore shares the handled envelopes between the nodes using the
// same redis. `SETNX` makes `Add` atomic across them.
type RedisMessageStore struct {
	client     *redis.Client
	expiration time.Duration
}

type RedisOptions = redis.Options

// NewRedisMessageStore keeps the envelopes for expiration; zero keeps them
// forever.
func NewRedisMessageStore(opt *RedisOptions, expiration time.Duration) *RedisMessageStore {
	return &RedisMessageStore{
		client:     redis.NewClient(opt),
		expiration: expiration,
	}
}

func (s *RedisMessageStore) Ping() error {
	return s.client.Ping().Err()
}

func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}

func (s *RedisMessageStore) Add(laoID string, env message.Envelope) (bool, error) {
	b, err := msgpack.Marshal(env)
	if err != nil {
		return false, errors.Wrap(errors.StorageCoreError, err)
	}

	added, err := s.client.SetNX(messageKey(laoID, env.MessageID), b, s.expiration).Result()
	if err != nil {
		return false, errors.Wrap(errors.StorageCoreError, err)
	}

	return added, nil
}

func (s *RedisMessageStore) Has(laoID, messageID string) (bool, error) {
	n, err := s.client.Exists(messageKey(laoID, messageID)).Result()
	if err != nil {
		return false, errors.Wrap(errors.StorageCoreError, err)
	}

	return n > 0, nil
}

func (s *RedisMessageStore) Get(laoID, messageID string) (env message.Envelope, err error) {
	var b []byte
	b, err = s.client.Get(messageKey(laoID, messageID)).Bytes()
	if err == redis.Nil {
		err = errors.StorageRecordDoesNotExist.Clone().SetData("message_id", messageID)
		return
	} else if err != nil {
		err = errors.Wrap(errors.StorageCoreError, err)
		return
	}

	if err = msgpack.Unmarshal(b, &env); err != nil {
		err = errors.Wrap(errors.StorageCoreError, err)
	}

	return
}

func (s *RedisMessageStore) Remove(laoID, messageID string) error {
	if err := s.client.Del(messageKey(laoID, messageID)).Err(); err != nil {
		return errors.Wrap(errors.StorageCoreError, err)
	}

	return nil
}

func (s *RedisMessageStore) AddWitnessSignature(laoID, messageID string, ws message.WitnessSignature) error {
	env, err := s.Get(laoID, messageID)
	if err != nil {
		return err
	}
	if !env.AddWitnessSignature(ws) {
		return nil
	}

	b, err := msgpack.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.StorageCoreError, err)
	}

	// KEEPTTL is not available on every redis, the expiration restarts
	if err := s.client.Set(messageKey(laoID, messageID), b, s.expiration).Err(); err != nil {
		return errors.Wrap(errors.StorageCoreError, err)
	}

	return nil
}
