package s3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{Bucket: "feeds"}, nil)
	assert.ErrorIs(t, err, ErrEndpointRequired)

	_, err = NewClient(Options{Endpoint: "localhost:9000"}, nil)
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestClient_ObjectURL(t *testing.T) {
	c, err := NewClient(Options{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://cdn.example.com/",
		Bucket:         "feeds",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/feeds/calendars/p-1.ics", c.objectURL("/calendars/p-1.ics"))
	assert.Equal(t, "public, max-age=300", c.cacheControl)

	c, err = NewClient(Options{Endpoint: "localhost:9000", Bucket: "feeds"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000/feeds/a.ics", c.objectURL("a.ics"))
}

func TestParseEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", parseEndpoint("http://minio:9000"))
	assert.Equal(t, "minio:9000", parseEndpoint("minio:9000"))
}

func TestReadPolicy_ScopedToPrefix(t *testing.T) {
	var doc struct {
		Statement []struct {
			Resource []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(readPolicy("feeds", "calendars")), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, []string{"arn:aws:s3:::feeds/calendars/*"}, doc.Statement[0].Resource)
}
