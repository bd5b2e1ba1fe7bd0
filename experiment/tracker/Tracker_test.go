package tracker

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stats(episode int) EpisodeStats {
	return EpisodeStats{
		Episode:      episode,
		Reward:       float64(episode) * 1.5,
		Steps:        100 + episode,
		MeanLoss:     0.25,
		Laps:         1,
		Finished:     episode%2 == 0,
		Epsilon:      0.5,
		LearningRate: 1e-3,
	}
}

func TestCSVWritesWindowPerMilestone(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCSV(dir)
	require.NoError(t, err)
	defer c.Close()

	for episode := 1; episode <= 50; episode++ {
		require.NoError(t, c.Track(stats(episode)))
	}
	require.NoError(t, c.Flush(50))

	file, err := os.Open(filepath.Join(dir, "training_stats_50.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 51) // header + 50 episodes
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "50", records[50][0])

	// The next window starts empty
	require.NoError(t, c.Track(stats(51)))
	require.NoError(t, c.Flush(100))

	file2, err := os.Open(filepath.Join(dir, "training_stats_100.csv"))
	require.NoError(t, err)
	defer file2.Close()

	records, err = csv.NewReader(file2).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCSVFlushEmptyWindowWritesNothing(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCSV(dir)
	require.NoError(t, err)

	require.NoError(t, c.Flush(50))
	_, err = os.Stat(filepath.Join(dir, "training_stats_50.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestSQLitePersistsEpisodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NotEmpty(t, s.RunID())

	for episode := 1; episode <= 5; episode++ {
		require.NoError(t, s.Track(stats(episode)))
	}
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM episodes WHERE run_id = ?",
		s.RunID()).Scan(&count))
	assert.Equal(t, 5, count)

	var reward float64
	var finished int
	require.NoError(t, db.QueryRow(
		"SELECT reward, finished FROM episodes WHERE run_id = ? AND "+
			"episode = 2", s.RunID()).Scan(&reward, &finished))
	assert.Equal(t, 3.0, reward)
	assert.Equal(t, 1, finished)
}

func TestMonitorBroadcastsEpisodes(t *testing.T) {
	m, err := NewMonitor("127.0.0.1:0")
	require.NoError(t, err)
	defer m.Close()

	// An episode tracked before any client connects is replayed from
	// history on connect
	require.NoError(t, m.Track(stats(1)))

	url := fmt.Sprintf("ws://%s/ws", m.Addr())
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var got EpisodeStats
	require.NoError(t, ws.ReadJSON(&got))
	assert.Equal(t, stats(1), got)

	require.NoError(t, m.Track(stats(2)))
	require.NoError(t, ws.ReadJSON(&got))
	assert.Equal(t, stats(2), got)
}
