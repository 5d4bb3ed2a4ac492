package redis

const (
	// incrementQuotaDayScript atomically increments or creates a daily page counter
	incrementQuotaDayScript = `
local day_key = KEYS[1]       -- kioskd:quota:day:{date}:{registration}
local index_key = KEYS[2]     -- kioskd:quota:index:{date}

local date = ARGV[1]
local registration = ARGV[2]
local pages = tonumber(ARGV[3])

local exists = redis.call('EXISTS', day_key)

if exists == 0 then
  redis.call('HSET', day_key,
    'date', date,
    'registration', registration,
    'pages', pages
  )
  -- Set TTL to 90 days (7776000 seconds)
  redis.call('EXPIRE', day_key, 7776000)

  redis.call('SADD', index_key, registration)
  redis.call('EXPIRE', index_key, 7776000)
else
  redis.call('HINCRBY', day_key, 'pages', pages)
end

return 'OK'
`

	// addPrintJobScript atomically stores a print job and indexes it by date
	addPrintJobScript = `
local job_key = KEYS[1]       -- kioskd:printjob:{id}
local index_key = KEYS[2]     -- kioskd:printjobs:{date}

local id = ARGV[1]
local registration = ARGV[2]
local date = ARGV[3]
local requested_at = ARGV[4]
local requested = ARGV[5]
local free = ARGV[6]
local billed = ARGV[7]
local cost = ARGV[8]

redis.call('HSET', job_key,
  'id', id,
  'registration', registration,
  'date', date,
  'requested_at', requested_at,
  'requested', requested,
  'free', free,
  'billed', billed,
  'cost', cost
)
redis.call('EXPIRE', job_key, 7776000)

redis.call('SADD', index_key, id)
redis.call('EXPIRE', index_key, 7776000)

return 'OK'
`
)
