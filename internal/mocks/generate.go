package mocks

//go:generate mockery --name KVStore --srcpkg github.com/aevon-lab/indexer-metrics-collector/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
