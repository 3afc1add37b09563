package repository

import (
	"context"
	"errors"

	"starcards/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCarNotFound      = errors.New("车队不存在")
	ErrCarStatusInvalid = errors.New("车队状态不合法")
)

type CarRepository struct {
	db *gorm.DB
}

func NewCarRepository(db *gorm.DB) *CarRepository {
	return &CarRepository{db: db}
}

func (r *CarRepository) Create(ctx context.Context, tx *gorm.DB, car *model.Car) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(car).Error
}

func (r *CarRepository) GetByCarNo(ctx context.Context, carNo string) (*model.Car, error) {
	var car model.Car
	err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("car_no = ?", carNo).
		First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return &car, nil
}

// GetByCarNoForUpdate 行锁读取，用于购买事务里的占位扣减
func (r *CarRepository) GetByCarNoForUpdate(ctx context.Context, tx *gorm.DB, carNo string) (*model.Car, error) {
	var car model.Car
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("car_no = ?", carNo).
		First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}

	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("car_id = ?", car.ID).
		Order("id ASC").
		Find(&car.Slots).Error
	if err != nil {
		return nil, err
	}
	return &car, nil
}

// UpdateStatus 条件更新状态，非法流转直接拒绝
func (r *CarRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, carNo string, fromStatus, toStatus string) error {
	if !model.CarCanTransitionTo(fromStatus, toStatus) {
		return ErrCarStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Car{}).
		Where("car_no = ? AND status = ?", carNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCarStatusInvalid
	}

	return nil
}

// SaveSlotSpots 持久化占位扣减结果
func (r *CarRepository) SaveSlotSpots(ctx context.Context, tx *gorm.DB, slots []model.CarSlot) error {
	if tx == nil {
		tx = r.db
	}
	for _, slot := range slots {
		err := tx.WithContext(ctx).
			Model(&model.CarSlot{}).
			Where("id = ?", slot.ID).
			Update("taken_spots", slot.TakenSpots).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *CarRepository) List(ctx context.Context, status string, page, pageSize int) ([]*model.Car, int64, error) {
	var cars []*model.Car
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Car{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&cars).Error

	return cars, total, err
}

func (r *CarRepository) ListByHost(ctx context.Context, hostName string) ([]*model.Car, error) {
	var cars []*model.Car
	err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("host_name = ?", hostName).
		Order("created_at DESC").
		Find(&cars).Error
	return cars, err
}
