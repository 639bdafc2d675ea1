package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/tradermind/pkg/marketdata/provider Provider,Universe
//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/tradermind/internal/dataset Store
//go:generate mockgen -destination=./mock_coordinator.go -package=mocks github.com/rxtech-lab/tradermind/internal/coordinator DatasetLoader,Sink
