package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"MGProject/data/database/mgo/mongoutil"
	"MGProject/logger"
	"MGProject/tools/safe"
)

// Entry 一条状态迁移审计记录。申请/邀请永不物理删除，
// 终态迁移再额外落一份到外部审计库。
type Entry struct {
	Kind   string    `bson:"kind"` // friend_request / invitation / friendship
	RefID  string    `bson:"ref_id"`
	From   string    `bson:"from"`
	To     string    `bson:"to"`
	Status string    `bson:"status"`
	At     time.Time `bson:"at"`
}

// Recorder fire-and-forget 审计落库；失败只记日志
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

const collectionName = "social_audit"

type mongoRecorder struct {
	cli *mongoutil.Client
}

func NewMongoRecorder(cli *mongoutil.Client) Recorder {
	return &mongoRecorder{cli: cli}
}

func (r *mongoRecorder) Record(ctx context.Context, e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		coll := r.cli.GetDB().Collection(collectionName)
		if _, err := coll.InsertOne(ctx, e); err != nil {
			logger.Error("audit insert failed",
				zap.String("kind", e.Kind), zap.String("ref_id", e.RefID), zap.Error(err))
		}
	})
}

type noopRecorder struct{}

func NewNoopRecorder() Recorder { return noopRecorder{} }

func (noopRecorder) Record(ctx context.Context, e Entry) {}
