package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"notes-api/domain"
)

// notesPartition holds every note; the service has no tenant split.
const notesPartition = "notes"

// Tables is the Azure Table Storage NoteRepository binding.
type Tables struct {
	client  *aztables.Client
	timeout time.Duration
	newID   func() uuid.UUID
}

// NewTables creates a Tables repository from a storage account connection string.
func NewTables(connStr, table string, timeout time.Duration) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return NewTablesFromClient(svc.NewClient(table), timeout), nil
}

// NewTablesFromClient wraps an existing table client.
func NewTablesFromClient(client *aztables.Client, timeout time.Duration) *Tables {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Tables{client: client, timeout: timeout, newID: uuid.New}
}

type noteEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Content      string `json:"Content"`
	Confidential bool   `json:"Confidential"`
}

func decodeNoteEntity(data []byte) (domain.Note, error) {
	var ent noteEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Note{}, err
	}
	id, err := uuid.Parse(ent.RowKey)
	if err != nil {
		return domain.Note{}, err
	}
	return domain.Note{ID: id, Content: ent.Content, Confidential: ent.Confidential}, nil
}

func (t *Tables) Create(ctx context.Context, in domain.CreateNoteInput) (domain.Note, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	note := domain.Note{ID: t.newID(), Content: in.Content, Confidential: in.Confidential}
	payload, err := sonic.Marshal(noteEntity{
		PartitionKey: notesPartition,
		RowKey:       note.ID.String(),
		Content:      note.Content,
		Confidential: note.Confidential,
	})
	if err != nil {
		return domain.Note{}, wrapErr("create", err)
	}
	// AddEntity rejects an existing row key, so an id collision surfaces as a
	// database error rather than overwriting a note.
	if _, err := t.client.AddEntity(ctx, payload, nil); err != nil {
		return domain.Note{}, wrapErr("create", err)
	}
	return note, nil
}

func (t *Tables) Find(ctx context.Context, id uuid.UUID) (domain.Note, bool, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.client.GetEntity(ctx, notesPartition, id.String(), nil)
	if err != nil {
		if isTableNotFound(err) {
			return domain.Note{}, false, nil
		}
		return domain.Note{}, false, wrapErr("find", err)
	}
	note, err := decodeNoteEntity(resp.Value)
	if err != nil {
		return domain.Note{}, false, wrapErr("find", err)
	}
	return note, true, nil
}

func (t *Tables) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.client.DeleteEntity(ctx, notesPartition, id.String(), nil); err != nil && !isTableNotFound(err) {
		return wrapErr("delete", err)
	}
	return nil
}

// Migrate creates the table, treating an existing table as success.
func (t *Tables) Migrate(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return wrapErr("migrate", err)
	}
	return nil
}

func isTableNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
