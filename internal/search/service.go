package search

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/veeky/veeky-backend/internal/config"
	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
)

// Gateway is the model-gateway surface the search path uses, satisfied by
// ollama.Client.
type Gateway interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	EmbedImage(ctx context.Context, imagePath string) ([]float64, error)
	DescribeImage(ctx context.Context, imagePath, prompt string) (string, error)
}

// Index executes a compiled query body, satisfied by opensearch.Client.
type Index interface {
	Search(ctx context.Context, body map[string]any) (*opensearch.SearchResponse, error)
}

// Request is one hybrid search call as received from the API layer.
type Request struct {
	Text      string
	ImagePath string

	// AnalyzeImage additionally runs the query image through the vision
	// model and folds the resulting description into the lexical query text.
	AnalyzeImage bool

	// PermittedCategories is nil for unrestricted requesters.
	PermittedCategories []uint
	RequestedCategory   *uint
}

// Service validates requests, enforces category access, computes embeddings
// and executes the compiled hybrid query.
type Service struct {
	log     *logger.Logger
	cfg     config.Search
	gateway Gateway
	index   Index
	ranker  *Ranker
}

func NewService(log *logger.Logger, cfg config.Search, gateway Gateway, index Index, ranker *Ranker) *Service {
	return &Service{
		log:     log.With("service", "SearchService"),
		cfg:     cfg,
		gateway: gateway,
		index:   index,
		ranker:  ranker,
	}
}

// Search runs one hybrid search. A requester with an empty (non-nil)
// permitted set short-circuits to an empty result without touching the
// index; a requested category outside a restricted permitted set is
// rejected rather than silently filtered out.
func (s *Service) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.Text == "" && req.ImagePath == "" {
		return nil, fmt.Errorf("provide search text or an image: %w", apperrors.ErrInvalidArgument)
	}

	if req.PermittedCategories != nil {
		if len(req.PermittedCategories) == 0 {
			s.log.Debug("requester has no permitted categories, returning empty result")
			return []Result{}, nil
		}
		if req.RequestedCategory != nil && !slices.Contains(req.PermittedCategories, *req.RequestedCategory) {
			return nil, fmt.Errorf("category %d is not accessible: %w",
				*req.RequestedCategory, apperrors.ErrForbidden)
		}
	}

	in := QueryInput{
		Text:                req.Text,
		PermittedCategories: req.PermittedCategories,
		RequestedCategory:   req.RequestedCategory,
		MaxResults:          s.cfg.MaxTotalResults,
	}

	// The embedding legs are independent model-gateway round trips; compute
	// them concurrently. A failed leg degrades that leg only.
	group, groupCtx := errgroup.WithContext(ctx)
	var imageDescription string
	if req.Text != "" {
		group.Go(func() error {
			embedding, err := s.gateway.EmbedText(groupCtx, req.Text)
			if err != nil {
				// Lexical matching still works without the vector leg.
				s.log.Warn("text embedding failed, searching lexically only", "error", err)
				return nil
			}
			in.TextEmbedding = embedding
			return nil
		})
	}
	if req.ImagePath != "" {
		if req.AnalyzeImage {
			group.Go(func() error {
				description, err := s.gateway.DescribeImage(groupCtx, req.ImagePath,
					"Describe the contents of this image in one factual sentence.")
				if err != nil {
					s.log.Warn("query image description failed", "error", err)
					return nil
				}
				imageDescription = description
				return nil
			})
		}
		group.Go(func() error {
			embedding, err := s.gateway.EmbedImage(groupCtx, req.ImagePath)
			if err != nil {
				s.log.Warn("query image embedding failed", "error", err)
				return nil
			}
			in.ImageEmbedding = embedding
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if imageDescription != "" {
		// The description joins the lexical leg alongside any caller text.
		if in.Text != "" {
			in.Text = in.Text + " " + imageDescription
		} else {
			in.Text = imageDescription
		}
	}

	if in.Text == "" && len(in.TextEmbedding) == 0 && len(in.ImageEmbedding) == 0 {
		return nil, fmt.Errorf("could not derive any query signal from the request: %w", apperrors.ErrInvalidArgument)
	}

	body := BuildHybridQuery(in)
	resp, err := s.index.Search(ctx, body)
	if err != nil {
		return nil, err
	}
	results, err := s.ranker.Rank(ctx, resp)
	if err != nil {
		return nil, err
	}
	s.log.Info("search executed",
		"text_len", len(req.Text),
		"with_image", req.ImagePath != "",
		"results", len(results),
	)
	return results, nil
}
