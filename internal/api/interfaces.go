// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"context"

	"github.com/tomtom215/machine/internal/models"
)

// Storage is the part of the storage handler the HTTP layer uses.
// *database.DB implements it.
type Storage interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetOrAddUser(ctx context.Context, userID, username string) (*models.User, error)
	DeleteUser(ctx context.Context, userID string) error

	GetModels(ctx context.Context, userID string) ([]models.Model, error)
	GetBaseModels(ctx context.Context) ([]models.BaseModel, error)
	GetFittings(ctx context.Context, userID string) ([]models.Fitting, error)

	GetMolecules(ctx context.Context, userID string) ([]models.Molecule, error)
	AddMolecule(ctx context.Context, userID, smiles, name string) (*models.Molecule, error)

	GetDatasetsInfo(ctx context.Context) ([]models.Dataset, error)
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	GetHistograms(ctx context.Context, datasetID string, labels []string) ([]models.Histogram, error)
}

// Engine is the ML engine surface. *ml.Engine implements it.
type Engine interface {
	CreateModel(ctx context.Context, userID string, spec models.ModelSpec) (*models.Model, error)
	Train(ctx context.Context, userID string, req models.TrainingRequest) (*models.Training, error)
	TrainingStatus(ctx context.Context, userID string) (*models.Training, error)
	StopTraining(ctx context.Context, userID string) (*models.Training, error)
	ForgetUser(ctx context.Context, userID string) error
	Analyze(ctx context.Context, userID, fittingID, moleculeID string) (*models.Analysis, error)
	Ready() error
}
