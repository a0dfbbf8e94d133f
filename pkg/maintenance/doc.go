// Package maintenance runs periodic housekeeping jobs on cron schedules.
//
// limitr registers two jobs with a Scheduler: clearing expired fixed-window
// counters and pruning the decision journal. Schedules use the standard
// five-field cron syntax or descriptors such as "@every 1m" and "@daily".
//
//	s := maintenance.NewScheduler(logger)
//	if err := s.AddJob("windows", "@every 1m", mgr.RunMaintenance); err != nil {
//	    return err
//	}
//	s.Start(ctx)
//	defer s.Stop()
package maintenance
