package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/masaicai/openresponses/gateway/responses"
)

var (
	testMongoClient    *mongo.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

func setupMongoDB() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		fmt.Printf("Docker not available, MongoDB tests will be skipped: %v\n", containerErr)
		skipMongoTests = true
		return
	}

	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		fmt.Printf("Failed to get container host: %v\n", err)
		skipMongoTests = true
		return
	}

	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		fmt.Printf("Failed to get container port: %v\n", err)
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		fmt.Printf("Failed to connect to MongoDB: %v\n", err)
		skipMongoTests = true
		return
	}

	if err := testMongoClient.Ping(ctx, nil); err != nil {
		fmt.Printf("Failed to ping MongoDB: %v\n", err)
		skipMongoTests = true
		return
	}
}

func getMongoStore(t *testing.T) (*MongoStore, *mongo.Collection) {
	t.Helper()
	if testMongoClient == nil && !skipMongoTests {
		setupMongoDB()
	}
	if skipMongoTests {
		t.Skip("Docker not available, skipping MongoDB test")
	}
	collection := testMongoClient.Database("openresponses_test").Collection(t.Name())
	if err := collection.Drop(context.Background()); err != nil {
		t.Fatalf("failed to drop collection: %v", err)
	}
	return NewMongoStore(collection), collection
}

func genUsage() gopter.Gen {
	return gopter.CombineGens(gen.IntRange(0, 1<<20), gen.IntRange(0, 1<<20)).
		Map(func(vals []interface{}) *responses.Usage {
			in, out := vals[0].(int), vals[1].(int)
			return &responses.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
		})
}

func genOutputItem() gopter.Gen {
	return gopter.CombineGens(gen.Identifier(), gen.AlphaString()).
		Map(func(vals []interface{}) responses.OutputItem {
			return responses.OutputItem{
				ID:      "msg_" + vals[0].(string),
				Type:    "message",
				Role:    "assistant",
				Status:  "completed",
				Content: []responses.ContentPart{{Type: "output_text", Text: vals[1].(string)}},
			}
		})
}

func genResponse() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.SliceOfN(2, genOutputItem()),
		genUsage(),
	).Map(func(vals []interface{}) *responses.Response {
		return &responses.Response{
			ID:        "resp_" + vals[0].(string),
			Object:    "response",
			CreatedAt: "1700000000",
			Model:     "openai@gpt-4o",
			Status:    "completed",
			Output:    vals[1].([]responses.OutputItem),
			Usage:     vals[2].(*responses.Usage),
		}
	})
}

func genInputItems() gopter.Gen {
	return gen.AlphaString().Map(func(text string) []responses.InputItem {
		return []responses.InputItem{{
			Role:    "user",
			Content: []responses.ContentPart{{Type: "input_text", Text: text}},
		}}
	})
}

// responsesEqual compares via canonical JSON so bson round-trip artifacts
// (field ordering) don't produce false negatives.
func responsesEqual(a, b *responses.Response) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(aj) == string(bj)
}

func TestMongoStorePersistenceRoundTrip(t *testing.T) {
	st, collection := getMongoStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("responses persist across store recreation", prop.ForAll(
		func(resp *responses.Response, items []responses.InputItem) bool {
			if err := st.Save(ctx, resp, items); err != nil {
				return false
			}

			reopened := NewMongoStore(collection)
			restored, err := reopened.Get(ctx, resp.ID)
			if err != nil {
				return false
			}
			if !responsesEqual(resp, restored) {
				return false
			}

			restoredItems, err := reopened.ListInputItems(ctx, resp.ID)
			if err != nil {
				return false
			}
			return len(restoredItems) == len(items)
		},
		genResponse(),
		genInputItems(),
	))

	properties.TestingRun(t)
}

func TestMongoStoreSaveIsIdempotentOnResponseID(t *testing.T) {
	st, collection := getMongoStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("saving the same response twice leaves one document", prop.ForAll(
		func(resp *responses.Response) bool {
			if err := st.Save(ctx, resp, nil); err != nil {
				return false
			}
			if err := st.Save(ctx, resp, nil); err != nil {
				return false
			}
			count, err := collection.CountDocuments(ctx, bson.M{"_id": resp.ID})
			if err != nil || count != 1 {
				return false
			}
			restored, err := st.Get(ctx, resp.ID)
			return err == nil && responsesEqual(resp, restored)
		},
		genResponse(),
	))

	properties.TestingRun(t)
}

func TestMongoStoreGetUnknownIDReturnsNotFound(t *testing.T) {
	st, _ := getMongoStore(t)
	ctx := context.Background()

	if _, err := st.Get(ctx, "resp_does_not_exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.Delete(ctx, "resp_does_not_exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMongoStoreDeleteRemovesDocument(t *testing.T) {
	st, _ := getMongoStore(t)
	ctx := context.Background()

	resp := &responses.Response{ID: "resp_del", Object: "response", CreatedAt: "1700000000", Model: "openai@gpt-4o", Status: "completed"}
	if err := st.Save(ctx, resp, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Delete(ctx, resp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, resp.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
