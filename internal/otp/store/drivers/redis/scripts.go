package redis

import goredis "github.com/redis/go-redis/v9"

// The scripts below reach the previous challenge and the target pointer
// through keys built from ARGV, so they assume a single Redis node (or that
// every key for a prefix lands in one hash slot).

// KEYS[1] challenge key, KEYS[2] target pointer
// ARGV: prefix, handle hash, ttl ms, now ms, id, kind, target, code hash,
// remaining, created, sent, expires
var putScript = goredis.NewScript(`
local prev = redis.call('GET', KEYS[2])
if prev and prev ~= ARGV[2] then
	local pk = ARGV[1] .. 'challenge:' .. prev
	if redis.call('HGET', pk, 'state') == 'pending' then
		redis.call('HSET', pk, 'state', 'superseded', 'updated_at', ARGV[4])
	end
end
redis.call('HSET', KEYS[1],
	'id', ARGV[5], 'target_kind', ARGV[6], 'target', ARGV[7], 'code_hash', ARGV[8],
	'state', 'pending', 'remaining', ARGV[9], 'resend_count', 0,
	'created_at', ARGV[10], 'sent_at', ARGV[11], 'expires_at', ARGV[12], 'updated_at', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// KEYS[1] challenge key; ARGV[1] now ms
// Returns -2 not found, -1 not pending, else remaining attempts.
var markScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
local st = redis.call('HGET', KEYS[1], 'state')
local rem = tonumber(redis.call('HGET', KEYS[1], 'remaining'))
if st ~= 'pending' or rem <= 0 then return -1 end
rem = rem - 1
if rem <= 0 then
	redis.call('HSET', KEYS[1], 'remaining', rem, 'state', 'exhausted', 'updated_at', ARGV[1])
else
	redis.call('HSET', KEYS[1], 'remaining', rem, 'updated_at', ARGV[1])
end
return rem
`)

// KEYS[1] challenge key; ARGV[1] now ms
// Returns -2 not found, 0 not consumable, 1 consumed by this call.
var consumeScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
local st = redis.call('HGET', KEYS[1], 'state')
local rem = tonumber(redis.call('HGET', KEYS[1], 'remaining'))
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if st ~= 'pending' or rem <= 0 or exp <= tonumber(ARGV[1]) then return 0 end
redis.call('HSET', KEYS[1], 'state', 'consumed', 'updated_at', ARGV[1])
return 1
`)

// KEYS[1] challenge key
// ARGV: code hash, sent ms, expires ms, ttl ms, target key prefix, handle hash
// Returns -2 not found, -1 not pending, 1 rotated.
var rotateScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
local st = redis.call('HGET', KEYS[1], 'state')
local rem = tonumber(redis.call('HGET', KEYS[1], 'remaining'))
if st ~= 'pending' or rem <= 0 then return -1 end
redis.call('HSET', KEYS[1], 'code_hash', ARGV[1], 'sent_at', ARGV[2], 'expires_at', ARGV[3], 'updated_at', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'resend_count', 1)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
local tk = ARGV[5] .. redis.call('HGET', KEYS[1], 'target')
if redis.call('GET', tk) == ARGV[6] then
	redis.call('PEXPIRE', tk, ARGV[4])
end
return 1
`)
