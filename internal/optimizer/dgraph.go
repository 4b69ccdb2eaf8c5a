package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/agentflow/agentflow/internal/models"
)

// DgraphInsightStore implements InsightStore on a Dgraph cluster, for
// deployments that share cross-project insights between orchestrators.
type DgraphInsightStore struct {
	client *dgo.Dgraph
	conn   *grpc.ClientConn
}

// NewDgraphInsightStore connects to the Dgraph alpha gRPC endpoint and
// initializes the insight schema.
func NewDgraphInsightStore(alphaURL string) (*DgraphInsightStore, error) {
	conn, err := grpc.Dial(alphaURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Dgraph: %w", err)
	}

	client := dgo.NewDgraphClient(api.NewDgraphClient(conn))
	store := &DgraphInsightStore{client: client, conn: conn}

	if err := store.initSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *DgraphInsightStore) initSchema(ctx context.Context) error {
	schema := `
		type Insight {
			insight.key: string
			insight.project: string
			insight.tasktype: string
			insight.agents: string
			insight.quality: float
			insight.samples: int
			insight.validated: datetime
		}

		insight.key: string @index(exact) @upsert .
		insight.project: string @index(exact) .
		insight.tasktype: string @index(exact) .
		insight.agents: string .
		insight.quality: float .
		insight.samples: int .
		insight.validated: datetime .
	`

	op := &api.Operation{Schema: schema}
	return s.client.Alter(ctx, op)
}

// Upsert stores or overwrites the insight node keyed by (project, task type)
func (s *DgraphInsightStore) Upsert(ctx context.Context, insight *models.Insight) error {
	key := insight.ProjectPath + "|" + insight.TaskType

	uid, err := s.getInsightUID(ctx, key)
	if err != nil {
		return err
	}
	if uid == "" {
		uid = "_:insight"
	}

	agents, err := json.Marshal(insight.OptimalAgents)
	if err != nil {
		return fmt.Errorf("failed to marshal optimal agents: %w", err)
	}

	mutation := &api.Mutation{
		CommitNow: true,
		SetJson: []byte(fmt.Sprintf(`{
			"uid": "%s",
			"insight.key": %q,
			"insight.project": %q,
			"insight.tasktype": %q,
			"insight.agents": %q,
			"insight.quality": %f,
			"insight.samples": %d,
			"insight.validated": "%s",
			"dgraph.type": "Insight"
		}`, uid, key, insight.ProjectPath, insight.TaskType, string(agents),
			insight.QualityScore, insight.SampleSize,
			time.Now().Format(time.RFC3339))),
	}

	txn := s.client.NewTxn()
	defer txn.Discard(ctx)

	_, err = txn.Mutate(ctx, mutation)
	return err
}

// Get retrieves the insight for a (project, task type) pair, or nil if absent
func (s *DgraphInsightStore) Get(ctx context.Context, projectPath, taskType string) (*models.Insight, error) {
	q := fmt.Sprintf(`{
		insights(func: eq(insight.key, %q)) {
			insight.project
			insight.tasktype
			insight.agents
			insight.quality
			insight.samples
			insight.validated
		}
	}`, projectPath+"|"+taskType)

	insights, err := s.queryInsights(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(insights) == 0 {
		return nil, nil
	}
	return insights[0], nil
}

// List returns every stored insight
func (s *DgraphInsightStore) List(ctx context.Context) ([]*models.Insight, error) {
	q := `{
		insights(func: type(Insight)) {
			insight.project
			insight.tasktype
			insight.agents
			insight.quality
			insight.samples
			insight.validated
		}
	}`

	return s.queryInsights(ctx, q)
}

func (s *DgraphInsightStore) queryInsights(ctx context.Context, q string) ([]*models.Insight, error) {
	txn := s.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("insight query failed: %w", err)
	}

	var result struct {
		Insights []struct {
			Project   string    `json:"insight.project"`
			TaskType  string    `json:"insight.tasktype"`
			Agents    string    `json:"insight.agents"`
			Quality   float64   `json:"insight.quality"`
			Samples   int       `json:"insight.samples"`
			Validated time.Time `json:"insight.validated"`
		} `json:"insights"`
	}

	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	insights := make([]*models.Insight, len(result.Insights))
	for i, row := range result.Insights {
		var agents []string
		json.Unmarshal([]byte(row.Agents), &agents)

		insights[i] = &models.Insight{
			ProjectPath:   row.Project,
			TaskType:      row.TaskType,
			OptimalAgents: agents,
			QualityScore:  row.Quality,
			SampleSize:    row.Samples,
			LastValidated: row.Validated,
		}
	}
	return insights, nil
}

func (s *DgraphInsightStore) getInsightUID(ctx context.Context, key string) (string, error) {
	q := fmt.Sprintf(`{
		insight(func: eq(insight.key, %q)) {
			uid
		}
	}`, key)

	txn := s.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("uid lookup failed: %w", err)
	}

	var result struct {
		Insight []struct {
			UID string `json:"uid"`
		} `json:"insight"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return "", err
	}

	if len(result.Insight) == 0 {
		return "", nil
	}
	return result.Insight[0].UID, nil
}

// Close closes the Dgraph connection
func (s *DgraphInsightStore) Close() error {
	return s.conn.Close()
}
