package follow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSocialGraphServer serves two pages of followers for user 7, one page of
// string-keyed following, and follower counts.
func newSocialGraphServer(t *testing.T) (*httptest.Server, *[]string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var cursors []string

	r.GET("/api/:user_id/followers", func(c *gin.Context) {
		if c.Param("user_id") != "7" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get followers"})
			return
		}
		cursors = append(cursors, c.Query("cursor"))
		if c.Query("cursor") == "" {
			c.JSON(http.StatusOK, gin.H{
				"user_id":     "7",
				"followers":   []gin.H{{"user_id": 11, "username": "a"}, {"user_id": 12}},
				"next_cursor": "page-2",
				"has_more":    true,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":   "7",
			"followers": []gin.H{{"user_id": 13}},
			"has_more":  false,
		})
	})
	r.GET("/api/:user_id/following", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"following": []gin.H{{"user_id": "star"}, {"user_id": "9b1c"}},
			"has_more":  false,
		})
	})
	r.GET("/api/followers/:userId/count", func(c *gin.Context) {
		if c.Param("userId") == "missing" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid userId format"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": c.Param("userId"), "followerCount": 60000})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &cursors
}

func TestHTTPGraph(t *testing.T) {
	ctx := context.Background()
	srv, cursors := newSocialGraphServer(t)
	g := NewHTTPGraph(srv.URL, 2*time.Second)

	t.Run("followers are read across pages", func(t *testing.T) {
		ids, err := g.GetFollowers(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, []string{"11", "12", "13"}, ids)
		assert.Equal(t, []string{"", "page-2"}, *cursors)
	})

	t.Run("following accepts string ids", func(t *testing.T) {
		ids, err := g.GetFollowing(ctx, "reader")
		require.NoError(t, err)
		assert.Equal(t, []string{"star", "9b1c"}, ids)
	})

	t.Run("follower count", func(t *testing.T) {
		n, err := g.GetFollowerCount(ctx, "star")
		require.NoError(t, err)
		assert.Equal(t, int64(60000), n)
	})

	t.Run("error statuses are returned as errors", func(t *testing.T) {
		_, err := g.GetFollowers(ctx, "8")
		assert.ErrorContains(t, err, "500")

		_, err = g.GetFollowerCount(ctx, "missing")
		assert.ErrorContains(t, err, "400")
	})

	t.Run("unreachable service", func(t *testing.T) {
		down := NewHTTPGraph("http://127.0.0.1:1", time.Second)
		_, err := down.GetFollowerCount(ctx, "star")
		assert.Error(t, err)
	})
}
