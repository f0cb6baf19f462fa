package report

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink 每行结果写为一个文档
type MongoSink struct {
	coll *mongo.Collection
}

func NewMongoSink(coll *mongo.Collection) *MongoSink {
	return &MongoSink{coll: coll}
}

// RowDocument 结果行对应的文档
func RowDocument(run Run, t Table, i int) bson.D {
	doc := bson.D{
		{Key: "run_id", Value: run.ID},
		{Key: "mode", Value: run.Mode},
		{Key: "source", Value: run.Source},
		{Key: "created_at", Value: run.CreatedAt},
		{Key: "table", Value: t.Name},
		{Key: "row", Value: i},
	}
	for j, v := range t.Rows[i] {
		doc = append(doc, bson.E{Key: t.Header[j], Value: v})
	}
	return doc
}

func (s *MongoSink) Write(ctx context.Context, run Run, t Table) error {
	if t.Len() == 0 {
		return nil
	}
	docs := make([]interface{}, t.Len())
	for i := range t.Rows {
		docs[i] = RowDocument(run, t, i)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert %s into %s: %w", t.Name, s.coll.Name(), err)
	}
	log.Debugf("inserted %d rows of %s into %s", t.Len(), t.Name, s.coll.Name())
	return nil
}

// Close 连接由loader.Sources管理
func (s *MongoSink) Close(context.Context) error {
	return nil
}

// MultiSink 依次写入所有输出
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, run Run, t Table) error {
	for _, s := range m {
		if err := s.Write(ctx, run, t); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close(ctx context.Context) error {
	var first error
	for _, s := range m {
		if err := s.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
