package world

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/game/command"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

type handler func(ctx context.Context, tx *Tx, cmd command.Command) ([]update.Update, error)

func (w *World) commandHandlers() map[command.Verb]handler {
	return map[command.Verb]handler{
		command.VerbLook:      w.look,
		command.VerbGo:        w.goTo,
		command.VerbTake:      w.take,
		command.VerbDrop:      w.drop,
		command.VerbFight:     w.fight,
		command.VerbInventory: w.inventory,
		command.VerbRefresh:   w.refresh,
		command.VerbTime:      w.showTime,
		command.VerbSave:      w.save,
		command.VerbQuit:      w.quit,
	}
}

// Command runs cmd on behalf of cmd.From and returns the resulting updates.
//
// Either every state change of the command is applied or none is. Failures
// are reported as an Error update to the actor: User errors verbatim, System
// errors as a generic notice. A Fatal error terminates the process.
func (w *World) Command(ctx context.Context, cmd command.Command) []update.Update {
	updates, err := w.dispatch(ctx, cmd)
	if err == nil {
		return updates
	}
	return w.failure(cmd, err)
}

func (w *World) dispatch(ctx context.Context, cmd command.Command) ([]update.Update, error) {
	h, ok := w.handlers[cmd.Verb]
	if !ok {
		return nil, userError("... What?")
	}
	if err := w.registry.Check(cmd); err != nil {
		var argErr *command.ArgumentError
		if errors.As(err, &argErr) {
			return nil, userError(argErr.Prompt)
		}
		return nil, systemError(err)
	}
	var out []update.Update
	err := w.transact(ctx, func(tx *Tx) error {
		var herr error
		out, herr = h(ctx, tx, cmd)
		return herr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (w *World) failure(cmd command.Command, err error) []update.Update {
	switch KindOf(err) {
	case KindUser:
		var we *Error
		errors.As(err, &we)
		return []update.Update{update.Error(cmd.From, we.Message)}
	case KindFatal:
		w.fatal("fatal error while running command",
			zap.String("character", cmd.From.String()),
			zap.String("verb", string(cmd.Verb)),
			zap.Error(err),
		)
		return nil
	default:
		w.logger.Error("command failed",
			zap.String("character", cmd.From.String()),
			zap.String("verb", string(cmd.Verb)),
			zap.Strings("args", cmd.Args),
			zap.Error(err),
		)
		return []update.Update{update.Error(cmd.From, SystemMessage)}
	}
}

// actor loads the commanding character and its location.
func (tx *Tx) actor(id entity.Identifier) (*Character, *Location, error) {
	c, err := tx.Character(id)
	if err != nil {
		return nil, nil, systemError(err)
	}
	l, err := tx.Location(c.Location)
	if err != nil {
		return nil, nil, systemError(err)
	}
	return c, l, nil
}

func (w *World) look(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, here, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	if len(cmd.Args) == 0 {
		return []update.Update{
			update.Space(me.ID, here.Describe()),
			update.Exits(me.ID, here.ExitNames()),
		}, nil
	}
	target := cmd.Arg(0)
	for _, id := range here.Population.IDs() {
		other, err := tx.Character(id)
		if err != nil {
			continue
		}
		if strings.EqualFold(other.Name, target) {
			return []update.Update{update.Character(me.ID, other.Describe())}, nil
		}
	}
	if item, ok := here.Inventory.Find(target); ok {
		return []update.Update{update.Item(me.ID, item.Describe())}, nil
	}
	return nil, userError("You don't see that here.")
}

func (w *World) goTo(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, from, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	dir, ok := ParseDirection(cmd.Arg(0))
	if !ok {
		return nil, userError("You can't go that way.")
	}
	toID, ok := from.Exit(dir)
	if !ok {
		return nil, userError("You can't go that way.")
	}
	to, err := tx.Location(toID)
	if err != nil {
		return nil, systemError(err)
	}

	from.Population.Remove(me.ID)
	to.Population.Add(me.ID)
	me.Location = to.ID
	me.ClearEnemies()
	tx.PutLocation(from)
	tx.PutLocation(to)
	tx.PutCharacter(me)

	arrivals := to.Population.IDs()
	out := []update.Update{
		update.Space(me.ID, to.Describe()),
		update.Exits(me.ID, to.ExitNames()),
		update.Population(me.ID, tx.names(arrivals)),
	}
	left := tx.names(from.Population.IDs())
	for _, id := range from.Population.IDs() {
		out = append(out, update.Population(id, left))
	}
	joined := tx.names(arrivals)
	for _, id := range arrivals {
		if id != me.ID {
			out = append(out, update.Population(id, joined))
		}
	}
	return out, nil
}

func (w *World) take(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, here, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	item, ok := here.Inventory.Remove(cmd.Arg(0))
	if !ok {
		return nil, userError("You don't see that.")
	}
	me.Inventory.Add(item)
	tx.PutCharacter(me)
	tx.PutLocation(here)
	return []update.Update{
		update.Info(me.ID, fmt.Sprintf("You took the %s.", item.Name)),
		update.Inventory(me.ID, me.Inventory.Names()),
		update.Space(me.ID, here.Describe()),
	}, nil
}

func (w *World) drop(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, here, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	item, ok := me.Inventory.Remove(cmd.Arg(0))
	if !ok {
		return nil, userError("You don't have that.")
	}
	here.Inventory.Add(item)
	tx.PutCharacter(me)
	tx.PutLocation(here)
	return []update.Update{
		update.Info(me.ID, fmt.Sprintf("You dropped the %s.", item.Name)),
		update.Inventory(me.ID, me.Inventory.Names()),
		update.Space(me.ID, here.Describe()),
	}, nil
}

func (w *World) fight(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, here, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	name := cmd.Arg(0)
	for _, id := range here.Population.IDs() {
		if id == me.ID {
			continue
		}
		target, err := tx.Character(id)
		if err != nil || !strings.EqualFold(target.Name, name) {
			continue
		}
		me.AddEnemy(target.ID)
		target.AddEnemy(me.ID)
		tx.PutCharacter(me)
		tx.PutCharacter(target)
		return []update.Update{
			update.Combat(me.ID, fmt.Sprintf("You attack %s!", target.Name)),
			update.Combat(target.ID, fmt.Sprintf("%s attacks you!", me.Name)),
		}, nil
	}
	return nil, userError("You don't see them here.")
}

func (w *World) inventory(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, err := tx.Character(cmd.From)
	if err != nil {
		return nil, systemError(err)
	}
	return []update.Update{update.Inventory(me.ID, me.Inventory.Names())}, nil
}

func (w *World) showTime(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	if _, err := tx.Character(cmd.From); err != nil {
		return nil, systemError(err)
	}
	return []update.Update{update.Time(cmd.From, w.Clock().DateTime())}, nil
}

func (w *World) refresh(_ context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, here, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	return []update.Update{
		update.Character(me.ID, me.Describe()),
		update.Population(me.ID, tx.names(here.Population.IDs())),
		update.Space(me.ID, here.Describe()),
		update.Exits(me.ID, here.ExitNames()),
		update.Time(me.ID, w.Clock().DateTime()),
		update.Inventory(me.ID, me.Inventory.Names()),
		update.Health(me.ID, me.HealthPercent()),
	}, nil
}

func (w *World) save(ctx context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, err := tx.Character(cmd.From)
	if err != nil {
		return nil, systemError(err)
	}
	if err := w.repo.SaveCharacter(ctx, me); err != nil {
		return nil, systemErrorf("saving character %s: %w", me.ID, err)
	}
	return []update.Update{update.Info(me.ID, "Saved.")}, nil
}

func (w *World) quit(ctx context.Context, tx *Tx, cmd command.Command) ([]update.Update, error) {
	me, here, err := tx.actor(cmd.From)
	if err != nil {
		return nil, err
	}
	if err := w.repo.SaveCharacter(ctx, me); err != nil {
		w.logger.Warn("saving character on quit",
			zap.String("character", me.ID.String()),
			zap.Error(err),
		)
	}
	here.Population.Remove(me.ID)
	tx.PutLocation(here)
	tx.RemoveCharacter(me.ID)

	out := []update.Update{update.Info(me.ID, "Goodbye.")}
	remaining := here.Population.IDs()
	names := tx.names(remaining)
	for _, id := range remaining {
		out = append(out, update.Population(id, names))
	}
	return out, nil
}
