package sqlinline

const QInsertQueueItem = `--sql e3b74a91-5c28-4d6f-a0b3-8f12d67c4e95
insert into queue_items (id, order_id, processing_step, status, attempts, max_attempts, scheduled_at, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, now(), now());
`

const QGetQueueItemByID = `--sql 2f6c9e0b-8d41-47a5-b3e8-61a0d5c7f284
select id, order_id, processing_step, status, attempts, max_attempts, scheduled_at, started_at, completed_at, error_message, created_at, updated_at
from queue_items
where id = $1;
`

// Claim: the single concurrency-control primitive of the pipeline. The CTE
// picks one due pending item and the update flips it to processing; SKIP
// LOCKED makes a lost race a plain empty result instead of an error.
const QClaimNextQueueItem = `--sql b18d4f6a-0e92-4c57-9ab1-3d85e7f20c46
with next_item as (
    select id
    from queue_items
    where status = 'pending' and scheduled_at <= $1
    order by scheduled_at asc
    for update skip locked
    limit 1
),
claimed as (
    update queue_items
    set status = 'processing', attempts = attempts + 1, started_at = now(), updated_at = now()
    where id in (select id from next_item)
    returning id, order_id, processing_step, status, attempts, max_attempts, scheduled_at, started_at, completed_at, error_message, created_at, updated_at
)
select * from claimed;
`

const QUpdateQueueItem = `--sql 74a2c5e8-3b91-4d0f-86c2-e5f9a1b38d07
update queue_items
set status = $2,
    attempts = $3,
    scheduled_at = $4,
    started_at = $5,
    completed_at = $6,
    error_message = $7,
    updated_at = now()
where id = $1;
`

const QListQueueItemsByOrder = `--sql 9e5f1b3c-7a48-42d6-b0e9-c26d8f4a1375
select id, order_id, processing_step, status, attempts, max_attempts, scheduled_at, started_at, completed_at, error_message, created_at, updated_at
from queue_items
where order_id = $1
order by created_at asc;
`
