package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bagvrs/pkg/convert"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_AddGet(t *testing.T) {
	c := openTestCatalog(t)

	res := &convert.Result{TotalMessages: 42, MessagesPerStream: map[uint32]int64{1001: 42}}
	e, err := c.Add(NewEntry("in.bag", "out.vrs", "rgbd", res, nil))
	require.NoError(t, err)
	assert.False(t, e.ID.IsNil())
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, StatusSuccess, e.Status)

	got, err := c.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "in.bag", got.Input)
	assert.Equal(t, "rgbd", got.Mapping)
	require.NotNil(t, got.Result)
	assert.Equal(t, int64(42), got.Result.MessagesPerStream[1001])

	got, err = c.Lookup(e.ID.String())
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = c.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Lookup("not-a-ksuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_List(t *testing.T) {
	c := openTestCatalog(t)

	var ids []ksuid.KSUID
	for i := 0; i < 5; i++ {
		e, err := c.Add(NewEntry(fmt.Sprintf("in%d.bag", i), fmt.Sprintf("out%d.vrs", i), "rgbd", nil, nil))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	ksuid.Sort(ids)

	all, err := c.List(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, ids[len(ids)-1-i], e.ID, "newest first")
	}

	two, err := c.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
	assert.Equal(t, all[0].ID, two[0].ID)
}

func TestCatalog_LatestForOutput(t *testing.T) {
	c := openTestCatalog(t)

	first, err := c.Add(NewEntry("a.bag", "out.vrs", "rgbd", nil, nil))
	require.NoError(t, err)
	second, err := c.Add(NewEntry("b.bag", "out.vrs", "rgbd_imu", nil, nil))
	require.NoError(t, err)

	got, err := c.LatestForOutput("out.vrs")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	require.NoError(t, c.Delete(second.ID))
	_, err = c.LatestForOutput("out.vrs")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(first.ID)
	assert.NoError(t, err)
	assert.NoError(t, c.Delete(second.ID), "deleting twice is fine")
}

func TestNewEntry_Status(t *testing.T) {
	res := &convert.Result{}
	assert.Equal(t, StatusSuccess, NewEntry("i", "o", "m", res, nil).Status)

	failed := NewEntry("i", "o", "m", res, errors.New("boom"))
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)
	assert.Nil(t, failed.Result)

	canceled := NewEntry("i", "o", "m", nil, fmt.Errorf("convert: %w", context.Canceled))
	assert.Equal(t, StatusCanceled, canceled.Status)
}

func TestCatalog_Persistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	c, err := Open(dir)
	require.NoError(t, err)
	e, err := c.Add(NewEntry("in.bag", "out.vrs", "rgbd", nil, nil))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.List(0)
	assert.ErrorIs(t, err, ErrClosed)

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	got, err := c.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "out.vrs", got.Output)
}
