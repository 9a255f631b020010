package metrics

import (
	"context"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/aws"
)

const namespace = "WebChainOrderSync"

// Recorder publishes broadcast outcome counters to CloudWatch. Best-effort:
// a metrics failure never affects the broadcast result.
type Recorder struct {
	client aws.CloudWatchAPI
	log    *zap.Logger
}

// NewRecorder returns a CloudWatch-backed Recorder.
func NewRecorder(client aws.CloudWatchAPI, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		client: client,
		log:    log,
	}
}

// RecordOutcome counts one broadcast outcome under the Outcome dimension.
func (r *Recorder) RecordOutcome(ctx context.Context, status string) {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String("BroadcastOutcome"),
				Timestamp:  sdkaws.Time(time.Now()),
				Value:      sdkaws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  sdkaws.String("Outcome"),
						Value: sdkaws.String(status),
					},
				},
			},
		},
	})
	if err != nil {
		r.log.Warn("failed to publish outcome metric",
			zap.String("outcome", status),
			zap.Error(err),
		)
	}
}
