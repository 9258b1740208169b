// Package redis is the shared result store backend. Several cooperating
// workers may point at the same redis, so the pending to terminal transition
// is a server side check-and-set.
package redis

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/taskstore"
	"github.com/garyburd/redigo/redis"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "agentd:task:"

// resolveScript flips a pending record to its terminal state atomically.
// 0 = key missing, 1 = resolved, 2 = already terminal.
var resolveScript = redis.NewScript(1, `
local cur = redis.call('GET', KEYS[1])
if not cur then return 0 end
local t = cjson.decode(cur)
if t['status'] ~= 'pending' then return 2 end
redis.call('SET', KEYS[1], ARGV[1], 'EX', tonumber(ARGV[2]))
return 1
`)

type redisStore struct {
	pool *redis.Pool
	ttl  time.Duration
}

// New connects to the redis at u and verifies it with a ping, retrying
// briefly before giving up.
func New(u *url.URL, ttl time.Duration) (taskstore.Store, error) {
	pool := &redis.Pool{
		MaxIdle:     16,
		MaxActive:   512,
		Wait:        true,
		IdleTimeout: 300 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(u.String())
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}

	bck := common.NewBackOff(common.BackOffConfig{
		MaxRetries: 5,
		Interval:   100,
		MinDelay:   100,
		MaxDelay:   3000,
	})
	for {
		conn := pool.Get()
		_, err := conn.Do("PING")
		conn.Close()
		if err == nil {
			break
		}
		delay, ok := bck.NextBackOff()
		if !ok {
			pool.Close()
			return nil, err
		}
		logrus.WithError(err).WithFields(logrus.Fields{"redis": common.MaskPassword(u), "delay": delay}).Warn("redis not reachable yet, retrying")
		time.Sleep(delay)
	}

	return &redisStore{pool: pool, ttl: ttl}, nil
}

func (s *redisStore) ttlSeconds() int {
	sec := int(s.ttl / time.Second)
	if sec < 1 {
		sec = 1
	}
	return sec
}

func (s *redisStore) Put(ctx context.Context, task *models.Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}
	conn := s.pool.Get()
	defer conn.Close()
	_, err = conn.Do("SET", keyPrefix+task.ID, b, "EX", s.ttlSeconds())
	return err
}

func (s *redisStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	conn := s.pool.Get()
	defer conn.Close()

	b, err := redis.Bytes(conn.Do("GET", keyPrefix+taskID))
	if err == redis.ErrNil {
		return nil, models.ErrTasksNotFound
	}
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := json.Unmarshal(b, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *redisStore) Resolve(ctx context.Context, taskID string, payload json.RawMessage, errMsg string) error {
	// fetch to rebuild the record, the script re-checks status atomically
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if errMsg != "" {
		task.Status = models.TaskStatusFailed
		task.Error = errMsg
		task.Payload = nil
	} else {
		task.Status = models.TaskStatusReady
		task.Payload = payload
	}
	b, err := json.Marshal(task)
	if err != nil {
		return err
	}

	conn := s.pool.Get()
	defer conn.Close()

	res, err := redis.Int(resolveScript.Do(conn, keyPrefix+taskID, b, s.ttlSeconds()))
	if err != nil {
		return err
	}
	switch res {
	case 0:
		return models.ErrTasksNotFound
	case 2:
		return taskstore.ErrAlreadyResolved
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, taskID string) error {
	conn := s.pool.Get()
	defer conn.Close()
	_, err := conn.Do("DEL", keyPrefix+taskID)
	return err
}

func (s *redisStore) Close() error {
	return s.pool.Close()
}

type redisProvider int

func (redisProvider) String() string { return "redis" }

func (redisProvider) Supports(u *url.URL) bool {
	switch u.Scheme {
	case "redis", "rediss":
		return true
	}
	return false
}

func (redisProvider) New(u *url.URL, ttl time.Duration) (taskstore.Store, error) {
	return New(u, ttl)
}

func init() {
	taskstore.AddProvider(redisProvider(0))
}
