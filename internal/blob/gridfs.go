package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFS stores blobs in a MongoDB GridFS bucket; ref = ObjectID hex.
type GridFS struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

// OpenGridFS connects and pings before returning, so a nil error means usable.
func OpenGridFS(ctx context.Context, uri, database, bucket string) (*GridFS, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	b, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(bucket))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	return &GridFS{client: client, bucket: b}, nil
}

func (g *GridFS) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}

func (g *GridFS) Put(ctx context.Context, data []byte, m Meta) (string, error) {
	md := bson.D{{Key: "contentType", Value: m.ContentType}}
	for k, v := range m.Attrs {
		md = append(md, bson.E{Key: k, Value: v})
	}
	id, err := g.bucket.UploadFromStream(m.Filename, bytes.NewReader(data),
		options.GridFSUpload().SetMetadata(md))
	if err != nil {
		return "", fmt.Errorf("gridfs upload %s: %w", m.Filename, err)
	}
	return id.Hex(), nil
}

func (g *GridFS) Get(ctx context.Context, ref string) (Object, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return Object{}, ErrNotFound
	}
	ds, err := g.bucket.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, fmt.Errorf("gridfs download %s: %w", ref, err)
	}

	f := ds.GetFile()
	obj := Object{Meta: Meta{Filename: f.Name, ContentType: "application/octet-stream", Attrs: map[string]string{}}, Size: f.Length, Body: ds}
	if len(f.Metadata) > 0 {
		elems, err := f.Metadata.Elements()
		if err == nil {
			for _, e := range elems {
				s, ok := e.Value().StringValueOK()
				if !ok {
					continue
				}
				if e.Key() == "contentType" {
					obj.ContentType = s
					continue
				}
				obj.Attrs[e.Key()] = s
			}
		}
	}
	return obj, nil
}
