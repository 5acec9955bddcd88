package sqlinline

const QInsertOrder = `--sql 8a1f3c22-6d0e-4b7a-9c41-2f8e5a6d9b03
insert into orders (id, user_id, service_id, parameters, status, current_step_index, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, now(), now());
`

const QGetOrderByID = `--sql 0c7d51fe-9b3a-4f86-b2d4-7e1a9c0f5e62
select id, user_id, service_id, parameters, status, current_step_index, result, error_message, created_at, updated_at
from orders
where id = $1;
`

// Conditional update: the row is only written while it is still in the status
// the caller observed, so a lost race (for example with a concurrent cancel)
// leaves the row untouched.
const QUpdateOrderIfStatus = `--sql 5b92e8d4-1a6f-4c3b-8e07-d94f2b7c1a58
update orders
set status = $3,
    current_step_index = $4,
    result = coalesce($5, result),
    error_message = $6,
    updated_at = now()
where id = $1 and status = $2
returning updated_at;
`
