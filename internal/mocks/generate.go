package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Log --dir ../domain/event --output domain/event --outpkg eventmock --filename log_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/scoring --output domain/scoring --outpkg scoringmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Store --dir ../domain/projection --output domain/projection --outpkg projectionmock --filename store_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Adapter --dir ../infrastructure/provider --output infrastructure/provider --outpkg providermock --filename adapter_mock.go
