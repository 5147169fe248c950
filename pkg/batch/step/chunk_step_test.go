package step

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/memory"
	"customerbatch/pkg/batch/util/exception"
)

type sliceReader struct {
	items   []*string
	pos     int
	openErr error
	closed  bool
}

func (r *sliceReader) Open(ctx context.Context, ec core.ExecutionContext) error { return r.openErr }

func (r *sliceReader) Read(ctx context.Context) (*string, error) {
	if r.pos >= len(r.items) {
		return nil, io.EOF
	}
	item := r.items[r.pos]
	r.pos++
	return item, nil
}

func (r *sliceReader) Close(ctx context.Context) error {
	r.closed = true
	return nil
}

func (r *sliceReader) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	ec := core.NewExecutionContext()
	ec.Put("test.read.count", r.pos)
	return ec, nil
}

type recordingWriter struct {
	chunks   [][]*string
	writeErr error
	closed   bool
}

func (w *recordingWriter) Open(ctx context.Context, ec core.ExecutionContext) error { return nil }

func (w *recordingWriter) Write(ctx context.Context, tx database.Tx, items []*string) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.chunks = append(w.chunks, items)
	return nil
}

func (w *recordingWriter) Close(ctx context.Context) error {
	w.closed = true
	return nil
}

func (w *recordingWriter) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	return core.NewExecutionContext(), nil
}

// dropProcessor は値が "drop" のアイテムをフィルタします。
type dropProcessor struct{}

func (dropProcessor) Process(ctx context.Context, item *string) (*string, error) {
	if *item == "drop" {
		return nil, nil
	}
	return item, nil
}

type countingChunkListener struct {
	before, after, errors int
}

func (l *countingChunkListener) BeforeChunk(ctx context.Context, se *core.StepExecution) { l.before++ }
func (l *countingChunkListener) AfterChunk(ctx context.Context, se *core.StepExecution)  { l.after++ }
func (l *countingChunkListener) AfterChunkError(ctx context.Context, se *core.StepExecution, err error) {
	l.errors++
}

func strs(values ...string) []*string {
	out := make([]*string, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}

func newFixture(t *testing.T) (database.DBConnection, sqlmock.Sqlmock, *memory.JobRepository, *core.JobExecution) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := memory.NewJobRepository()
	je := core.NewJobExecution("instance-1", "customerJob", core.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return database.NewSQLDBAdapter(db, "postgres"), mock, repo, je
}

func TestChunkStepWritesEveryChunkInItsOwnTransaction(t *testing.T) {
	conn, mock, repo, je := newFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	reader := &sliceReader{items: strs("a", "b", "c")}
	writer := &recordingWriter{}
	chunkListener := &countingChunkListener{}
	s := NewChunkStep[*string, *string]("customerStep", reader, dropProcessor{}, writer, 2, repo, conn, nil, []core.ChunkListener{chunkListener})

	se := core.NewStepExecution(s.StepName(), je)
	require.NoError(t, s.Execute(context.Background(), je, se))

	assert.Equal(t, core.BatchStatusCompleted, se.Status)
	assert.Equal(t, core.ExitStatusCompleted, se.ExitStatus)
	assert.Equal(t, 3, se.ReadCount)
	assert.Equal(t, 3, se.WriteCount)
	assert.Equal(t, 2, se.CommitCount)
	assert.Equal(t, 0, se.RollbackCount)
	require.Len(t, writer.chunks, 2)
	assert.Len(t, writer.chunks[0], 2)
	assert.Len(t, writer.chunks[1], 1)
	assert.True(t, reader.closed)
	assert.True(t, writer.closed)
	assert.Equal(t, 2, chunkListener.after)
	assert.Equal(t, 0, chunkListener.errors)

	count, ok := se.ExecutionContext.GetInt("test.read.count")
	require.True(t, ok)
	assert.Equal(t, 3, count)

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.WriteCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStepEmptyInputDoesNotOpenTransaction(t *testing.T) {
	conn, mock, repo, je := newFixture(t)

	writer := &recordingWriter{}
	s := NewChunkStep[*string, *string]("customerStep", &sliceReader{}, dropProcessor{}, writer, 10, repo, conn, nil, nil)
	se := core.NewStepExecution(s.StepName(), je)

	require.NoError(t, s.Execute(context.Background(), je, se))
	assert.Equal(t, core.BatchStatusCompleted, se.Status)
	assert.Equal(t, 0, se.ReadCount)
	assert.Equal(t, 0, se.CommitCount)
	assert.Empty(t, writer.chunks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStepFilteredItemsAreNotWritten(t *testing.T) {
	conn, mock, repo, je := newFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	writer := &recordingWriter{}
	s := NewChunkStep[*string, *string]("customerStep", &sliceReader{items: strs("a", "drop", "drop")}, dropProcessor{}, writer, 3, repo, conn, nil, nil)
	se := core.NewStepExecution(s.StepName(), je)

	require.NoError(t, s.Execute(context.Background(), je, se))
	assert.Equal(t, 3, se.ReadCount)
	assert.Equal(t, 2, se.FilterCount)
	assert.Equal(t, 1, se.WriteCount)
	require.Len(t, writer.chunks, 1)
	assert.Equal(t, "a", *writer.chunks[0][0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStepWriteErrorRollsBackAndFails(t *testing.T) {
	conn, mock, repo, je := newFixture(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	reader := &sliceReader{items: strs("a", "b", "c")}
	writer := &recordingWriter{writeErr: errors.New("duplicate key")}
	chunkListener := &countingChunkListener{}
	s := NewChunkStep[*string, *string]("customerStep", reader, dropProcessor{}, writer, 2, repo, conn, nil, []core.ChunkListener{chunkListener})
	se := core.NewStepExecution(s.StepName(), je)

	err := s.Execute(context.Background(), je, se)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.Equal(t, core.BatchStatusFailed, se.Status)
	assert.Equal(t, core.ExitStatusFailed, se.ExitStatus)
	assert.Equal(t, 1, se.RollbackCount)
	assert.Equal(t, 0, se.CommitCount)
	assert.Equal(t, 0, se.WriteCount)
	assert.Equal(t, 1, chunkListener.errors)
	assert.True(t, reader.closed)
	assert.True(t, writer.closed)
	// 失敗したチャンク以降は読み込まない
	assert.Equal(t, 2, reader.pos)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStepOpenFailureFailsWithoutTransaction(t *testing.T) {
	conn, mock, repo, je := newFixture(t)

	reader := &sliceReader{openErr: errors.New("no such file")}
	writer := &recordingWriter{}
	s := NewChunkStep[*string, *string]("customerStep", reader, dropProcessor{}, writer, 2, repo, conn, nil, nil)
	se := core.NewStepExecution(s.StepName(), je)

	err := s.Execute(context.Background(), je, se)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, se.Status)
	assert.False(t, reader.closed)
	assert.False(t, writer.closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStepStopsOnCancelledContext(t *testing.T) {
	conn, mock, repo, je := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewChunkStep[*string, *string]("customerStep", &sliceReader{items: strs("a")}, dropProcessor{}, &recordingWriter{}, 2, repo, conn, nil, nil)
	se := core.NewStepExecution(s.StepName(), je)

	err := s.Execute(ctx, je, se)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, se.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStepWithAnyAdapters(t *testing.T) {
	conn, mock, repo, je := newFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	writer := &recordingWriter{}
	s := NewChunkStep[any, any]("customerStep",
		NewAnyReader[*string](&sliceReader{items: strs("a", "drop")}),
		NewAnyProcessor[*string, *string](dropProcessor{}),
		NewAnyWriter[*string](writer),
		10, repo, conn, nil, nil)
	se := core.NewStepExecution(s.StepName(), je)

	require.NoError(t, s.Execute(context.Background(), je, se))
	assert.Equal(t, 1, se.FilterCount)
	require.Len(t, writer.chunks, 1)
	assert.Equal(t, "a", *writer.chunks[0][0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnyWriterRejectsUnexpectedType(t *testing.T) {
	w := NewAnyWriter[*string](&recordingWriter{})
	err := w.Write(context.Background(), nil, []any{42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "int")
	assert.Equal(t, module, exception.ModuleOf(err))
}

func TestAnyProcessorRejectsUnexpectedType(t *testing.T) {
	p := NewAnyProcessor[*string, *string](dropProcessor{})
	_, err := p.Process(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, module, exception.ModuleOf(err))
}
