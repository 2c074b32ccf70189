// Package mgmt implements management queries against a DDMW node.
package mgmt

import (
	"context"

	"ddmw-cli/internal/conn"
	"ddmw-cli/internal/proto"
)

// Account is one account record as reported by the node.
type Account struct {
	ID    int64
	Name  string
	Lock  bool
	Perms map[string]struct{}
}

// AccountQuery selects which account to read. The zero value queries the
// connection's current owner.
type AccountQuery struct {
	id   *int64
	name string
}

// CurrentAccount queries the connection's current owner.
func CurrentAccount() AccountQuery {
	return AccountQuery{}
}

// AccountByID queries an account by its numeric identifier.
func AccountByID(id int64) AccountQuery {
	return AccountQuery{id: &id}
}

// AccountByName queries an account by name.
func AccountByName(name string) AccountQuery {
	return AccountQuery{name: name}
}

// ReadAccount fetches information about an account.
func ReadAccount(ctx context.Context, c *conn.Conn, q AccountQuery) (*Account, error) {
	tg, err := proto.NewTelegramTopic(proto.TopicRdAcc)
	if err != nil {
		return nil, err
	}
	switch {
	case q.id != nil:
		if err := tg.AddParamInt("Id", *q.id); err != nil {
			return nil, err
		}
	case q.name != "":
		if err := tg.AddParam("Name", q.name); err != nil {
			return nil, err
		}
	}

	params, err := c.SendRecv(ctx, tg)
	if err != nil {
		return nil, err
	}

	id, err := params.Int64("Id")
	if err != nil {
		return nil, err
	}
	name, _ := params.Get("Name")
	lock, err := params.Bool("Lock")
	if err != nil {
		return nil, err
	}
	perms, err := params.StrSet("Perms")
	if err != nil {
		return nil, err
	}

	return &Account{ID: id, Name: name, Lock: lock, Perms: perms}, nil
}
